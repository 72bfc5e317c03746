package authkit

import (
	"context"
	"errors"
	"fmt"
)

// secondFactorVerdict is the tri-state outcome of a single verifier:
// a verifier that has nothing enrolled answers notApplicable so the next
// one in the chain gets the raw input.
type secondFactorVerdict uint8

const (
	verdictNotApplicable secondFactorVerdict = iota
	verdictNoMatch
	verdictMatched
)

// VerifySecondFactor resolves a pending login with a one-time code: the
// input is offered to the TOTP verifier first and, failing that, to the
// backup-code verifier. A matched backup code is removed from the stored
// set before the sign-in completes, so it can never be accepted twice.
//
// VerifySecondFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifySecondFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifySecondFactor(
	ctx context.Context,
	pendingLoginID string,
	code string,
	opts SecondFactorOptions,
) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.pendingLoginStore.Get(ctx, pendingLoginID)
	if err != nil {
		return nil, e.failSecondFactorLookup(ctx, err)
	}

	user, err := e.userProvider.GetUserByID(ctx, record.UserID)
	if err != nil {
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, record.UserID, ErrProviderUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	verdict := e.verifyTOTPFactor(user, code)
	usedBackupCode := false

	if verdict != verdictMatched {
		backupVerdict, err := e.verifyBackupFactor(ctx, user, code)
		if err != nil {
			e.metricInc(MetricSecondFactorFailure)
			e.emitAudit(ctx, auditEventSecondFactorFailure, false, user.ID, ErrProviderUnavailable, nil)
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		switch backupVerdict {
		case verdictMatched:
			verdict = verdictMatched
			usedBackupCode = true
		case verdictNoMatch:
			e.metricInc(MetricBackupCodeFailed)
			if verdict == verdictNotApplicable {
				verdict = verdictNoMatch
			}
		}
	}

	if verdict != verdictMatched {
		return nil, e.failSecondFactorAttempt(ctx, pendingLoginID, user.ID)
	}

	if usedBackupCode {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, nil, nil)
	} else {
		e.metricInc(MetricTOTPSuccess)
	}

	return e.completeSecondFactor(ctx, pendingLoginID, user, opts)
}

// verifyTOTPFactor answers notApplicable when the user has no TOTP secret.
func (e *Engine) verifyTOTPFactor(user *UserRecord, code string) secondFactorVerdict {
	if user.TOTPSecret == "" {
		return verdictNotApplicable
	}
	if e.totp.Verify(code, user.TOTPSecret, e.now()) {
		return verdictMatched
	}
	return verdictNoMatch
}

// verifyBackupFactor redeems a matched code through the provider's atomic
// remove before reporting the match. Losing the removal race means another
// request already spent the code, so the snapshot match counts for
// nothing. A removal failure is a hard error: the code must not complete a
// sign-in while still redeemable.
func (e *Engine) verifyBackupFactor(ctx context.Context, user *UserRecord, code string) (secondFactorVerdict, error) {
	hashes, err := e.userProvider.GetBackupCodeHashes(ctx, user.ID)
	if err != nil {
		return verdictNoMatch, err
	}
	if len(hashes) == 0 {
		return verdictNotApplicable, nil
	}

	idx := e.backupCodes.Match(code, hashes)
	if idx < 0 {
		return verdictNoMatch, nil
	}

	removed, err := e.userProvider.RemoveBackupCodeHash(ctx, user.ID, hashes[idx])
	if err != nil {
		return verdictNoMatch, err
	}
	if !removed {
		return verdictNoMatch, nil
	}
	return verdictMatched, nil
}

func (e *Engine) failSecondFactorLookup(ctx context.Context, err error) error {
	e.metricInc(MetricSecondFactorFailure)
	switch {
	case errors.Is(err, errPendingLoginNotFound), errors.Is(err, errPendingLoginExpired):
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, "", ErrPendingLoginExpired, nil)
		return ErrPendingLoginExpired
	default:
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, "", ErrStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (e *Engine) failSecondFactorAttempt(ctx context.Context, pendingLoginID, userID string) error {
	exceeded, err := e.pendingLoginStore.RecordFailure(ctx, pendingLoginID, e.config.PendingLogin.MaxAttempts)
	if err != nil {
		if errors.Is(err, errPendingLoginNotFound) || errors.Is(err, errPendingLoginExpired) {
			e.metricInc(MetricSecondFactorFailure)
			e.emitAudit(ctx, auditEventSecondFactorFailure, false, userID, ErrPendingLoginExpired, nil)
			return ErrPendingLoginExpired
		}
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, userID, ErrStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if exceeded {
		e.metricInc(MetricSecondFactorAttemptsExceeded)
		e.emitAudit(ctx, auditEventSecondFactorExceeded, false, userID, ErrPendingLoginAttemptsExceeded, nil)
		return ErrPendingLoginAttemptsExceeded
	}

	e.metricInc(MetricSecondFactorFailure)
	e.emitAudit(ctx, auditEventSecondFactorFailure, false, userID, ErrInvalidCode, nil)
	return ErrInvalidCode
}

// completeSecondFactor consumes the pending login. Delete reports whether
// anything was removed; losing that race means another caller already
// finished this challenge, which is treated as an expired login.
func (e *Engine) completeSecondFactor(
	ctx context.Context,
	pendingLoginID string,
	user *UserRecord,
	opts SecondFactorOptions,
) (*LoginResult, error) {
	deleted, err := e.pendingLoginStore.Delete(ctx, pendingLoginID)
	if err != nil {
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, user.ID, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !deleted {
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, user.ID, ErrPendingLoginExpired, func() map[string]string {
			return map[string]string{"reason": "replay"}
		})
		return nil, ErrPendingLoginExpired
	}

	result := &LoginResult{Status: LoginStatusFullySignedIn, User: user}

	if opts.TrustDevice {
		token, _ := e.trustedDevices.Mint(user.ID, user.TrustedEpoch)
		result.TrustedDeviceToken = token
		e.metricInc(MetricTrustedDeviceIssued)
		e.emitAudit(ctx, auditEventTrustedDeviceIssued, true, user.ID, nil, nil)
	}

	e.metricInc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, auditEventSecondFactorSuccess, true, user.ID, nil, nil)
	return result, nil
}
