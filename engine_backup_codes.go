package authkit

import (
	"context"
	"fmt"
)

// RegenerateBackupCodes replaces the whole stored batch and returns the new
// plaintext codes. It requires a password re-check and an enrolled second
// factor: backup codes without a primary second factor would be a password
// with extra steps.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID string, plaintext string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.verifyPasswordForUser(ctx, userID, plaintext)
	if err != nil {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, userID, err, nil)
		return nil, err
	}

	hints, err := e.secondFactorHints(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if hints == nil {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, user.ID, ErrSecondFactorNotEnabled, nil)
		return nil, ErrSecondFactorNotEnabled
	}

	codes, hashes, err := e.backupCodes.Generate()
	if err != nil {
		return nil, err
	}
	if err := e.userProvider.ReplaceBackupCodeHashes(ctx, user.ID, hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricBackupCodesGenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, user.ID, nil, nil)
	return codes, nil
}
