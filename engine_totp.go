package authkit

import (
	"context"
	"errors"
	"fmt"
)

// BeginTOTPSetup generates a secret and stages it in the ephemeral store.
// Nothing is persisted durably until the user proves possession via
// [Engine.ConfirmTOTPSetup]; an abandoned setup simply expires.
//
// BeginTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// BeginTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginTOTPSetup(ctx context.Context, userID string) (*TOTPSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	secret, url, err := e.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	record := &totpSetup{
		Secret:    secret,
		ExpiresAt: e.now().Add(e.config.TOTP.SetupTTL).Unix(),
	}
	if err := e.totpSetupStore.Save(ctx, userID, record, e.config.TOTP.SetupTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, userID, nil, nil)
	return &TOTPSetup{SecretBase32: secret, ProvisioningURL: url}, nil
}

// ConfirmTOTPSetup enables TOTP after the user echoes a valid code for the
// staged secret. On first enablement a batch of backup codes is generated
// and returned in plaintext, the only time they are visible.
//
// ConfirmTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, userID string, code string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	staged, err := e.totpSetupStore.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, errTOTPSetupNotFound) {
			return nil, ErrNoPendingChallenge
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !e.totp.Verify(code, staged.Secret, e.now()) {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPEnabled, false, userID, ErrInvalidCode, nil)
		return nil, ErrInvalidCode
	}

	if err := e.userProvider.SetTOTPSecret(ctx, userID, staged.Secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if err := e.totpSetupStore.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, userID, nil, nil)

	existing, err := e.userProvider.GetBackupCodeHashes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(existing) > 0 {
		return nil, nil
	}

	codes, hashes, err := e.backupCodes.Generate()
	if err != nil {
		return nil, err
	}
	if err := e.userProvider.ReplaceBackupCodeHashes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricBackupCodesGenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, userID, nil, nil)
	return codes, nil
}

// DisableTOTP removes the TOTP secret after a password re-check. Backup
// codes are cleared as well unless a WebAuthn second factor keeps them
// meaningful.
//
// DisableTOTP may return an error when input validation, dependency calls, or security checks fail.
// DisableTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisableTOTP(ctx context.Context, userID string, plaintext string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.verifyPasswordForUser(ctx, userID, plaintext)
	if err != nil {
		e.emitAudit(ctx, auditEventTOTPDisabled, false, userID, err, nil)
		return err
	}

	if err := e.userProvider.ClearTOTPSecret(ctx, user.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	var keys []*WebAuthnCredential
	if e.credentialProvider != nil {
		keys, err = e.credentialProvider.GetCredentialsByUser(ctx, user.ID, false)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}
	if len(keys) == 0 {
		if err := e.userProvider.ReplaceBackupCodeHashes(ctx, user.ID, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, user.ID, nil, nil)
	return nil
}

// verifyPasswordForUser is the shared password re-check for sensitive
// management operations.
func (e *Engine) verifyPasswordForUser(ctx context.Context, userID string, plaintext string) (*UserRecord, error) {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
