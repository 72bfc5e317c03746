package authkit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/stdozor/authkit/internal"
)

// Verification tokens are 32 random bytes rendered as 64 lowercase hex
// characters; only the SHA-256 digest is ever stored.
const verificationTokenBytes = 32

func newVerificationTokenValue() (string, error) {
	return internal.NewHexToken(verificationTokenBytes)
}

func hashVerificationToken(token string) [32]byte {
	return internal.HashToken(token)
}

// RequestEmailVerification re-issues a verification token for an
// unverified account. The response is identical whether the email is
// unknown, already verified, or a fresh token was sent.
//
// RequestEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventEmailVerificationRequest, false, "", ErrUserNotFound, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if user.Verified {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, user.ID, nil, func() map[string]string {
			return map[string]string{"reason": "already_verified"}
		})
		return nil
	}

	e.issueVerificationToken(ctx, user.ID, user.Email)
	return nil
}

// ConfirmEmailVerification redeems a verification token. Not-found,
// already-used, and expired tokens all fail with
// [ErrInvalidOrExpiredToken]; a token can only ever be redeemed once.
//
// ConfirmEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if len(token) != 2*verificationTokenBytes || !isLowerHex(token) {
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	record, err := e.userProvider.ConsumeVerificationToken(ctx, hashVerificationToken(token))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", ErrInvalidOrExpiredToken, nil)
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if e.now().After(record.ExpiresAt) {
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, record.UserID, ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	if err := e.userProvider.MarkVerified(ctx, record.UserID); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationConfirm)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, record.UserID, nil, nil)
	return nil
}

func isLowerHex(s string) bool {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return false
	}
	return hex.EncodeToString(decoded) == s
}
