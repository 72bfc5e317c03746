package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ChangePassword replaces the password of an authenticated user after
// re-proving the current one. The new password passes through the same
// policy and breach checks as registration, and a successful change
// revokes outstanding trusted-device tokens so a stolen cookie does not
// outlive the credential it was minted under.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID string, currentPassword string, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordChanged, false, userID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.checkPasswordAcceptable(ctx, newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChanged, false, userID, err, nil)
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if _, err := e.userProvider.IncrementTrustedEpoch(ctx, userID); err != nil {
		log.Print("authkit: trusted epoch advance failed after password change")
	} else {
		e.metricInc(MetricTrustedDevicesRevoked)
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, userID, nil, nil)
	return nil
}
