package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stdozor/authkit/internal"
)

// Reset tokens are split: a short selector used for the lookup and a long
// verifier that is only ever stored as an argon2id hash. The database
// never holds enough to forge a valid link, and the lookup itself leaks
// nothing about the verifier.
const (
	resetSelectorBytes = 10
	resetVerifierBytes = 20
	resetSelectorLen   = 2 * resetSelectorBytes
)

// RequestPasswordReset opens (or replaces) the single live reset request
// for the account behind email. Unknown and unverified addresses return
// nil exactly like the successful path.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", ErrUserNotFound, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !user.Verified {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, nil, func() map[string]string {
			return map[string]string{"reason": "unverified"}
		})
		return nil
	}

	selector, err := internal.NewHexToken(resetSelectorBytes)
	if err != nil {
		return err
	}
	verifier, err := internal.NewHexToken(resetVerifierBytes)
	if err != nil {
		return err
	}

	verifierHash, err := e.passwordHash.Hash(verifier)
	if err != nil {
		return err
	}

	request := &ResetRequest{
		UserID:       user.ID,
		Selector:     selector,
		VerifierHash: verifierHash,
		ExpiresAt:    e.now().Add(e.config.PasswordReset.TokenTTL),
	}
	if err := e.userProvider.ReplaceResetRequest(ctx, request); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, nil, nil)

	if e.mailer != nil {
		if err := e.mailer.SendPasswordResetEmail(ctx, user.Email, selector+verifier); err != nil {
			e.emitAudit(ctx, auditEventMailDeliveryFailed, false, user.ID, nil, func() map[string]string {
				return map[string]string{"kind": "password_reset"}
			})
		}
	}
	return nil
}

// ValidateResetToken resolves a reset token to the user it belongs to
// without consuming it. Every failure mode answers
// [ErrInvalidOrExpiredToken].
//
// ValidateResetToken may return an error when input validation, dependency calls, or security checks fail.
// ValidateResetToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateResetToken(ctx context.Context, token string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	if len(token) <= resetSelectorLen {
		return "", ErrInvalidOrExpiredToken
	}
	selector, verifier := token[:resetSelectorLen], token[resetSelectorLen:]

	request, err := e.userProvider.GetResetRequestBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", ErrInvalidOrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if e.now().After(request.ExpiresAt) {
		_ = e.userProvider.DeleteResetRequest(ctx, selector)
		return "", ErrInvalidOrExpiredToken
	}

	ok, err := e.passwordHash.Verify(verifier, request.VerifierHash)
	if err != nil || !ok {
		return "", ErrInvalidOrExpiredToken
	}

	return request.UserID, nil
}

// ConfirmPasswordReset validates the token, consumes the request, and
// applies the new password. A completed reset also revokes trusted devices
// when configured, so a stolen cookie does not survive an account
// recovery.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token string, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	userID, err := e.ValidateResetToken(ctx, token)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", err, nil)
		return err
	}

	if err := e.checkPasswordAcceptable(ctx, newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, err, nil)
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	// Consume before touching the password. The request row is the
	// single-use guard: whichever confirm deletes it proceeds, everyone
	// else fails, and a consume that cannot be completed aborts the reset
	// rather than leaving a spent token redeemable.
	if _, err := e.userProvider.ConsumeResetRequest(ctx, token[:resetSelectorLen]); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, ErrInvalidOrExpiredToken, nil)
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if e.config.PasswordReset.RevokeTrustedDevices {
		if _, err := e.userProvider.IncrementTrustedEpoch(ctx, userID); err != nil {
			log.Print("authkit: trusted epoch advance failed after reset")
		} else {
			e.metricInc(MetricTrustedDevicesRevoked)
		}
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, userID, nil, nil)
	return nil
}
