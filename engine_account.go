package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Register creates an unverified account and dispatches a verification
// email. The outcome is indistinguishable whether the email was fresh or
// already belongs to a verified account: both return nil, and only the
// audit trail records the difference.
//
// A stale unverified account under the same email is replaced, so an
// abandoned registration never blocks the address.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if !strings.Contains(email, "@") || len(email) > 255 {
		return ErrInvalidCredentials
	}

	if err := e.checkPasswordAcceptable(ctx, req.Password); err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", err, nil)
		return err
	}

	existing, err := e.userProvider.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.Verified:
		e.metricInc(MetricRegistrationDuplicate)
		e.emitAudit(ctx, auditEventRegistrationDuplicate, false, existing.ID, nil, nil)
		return nil
	case err == nil:
		if err := e.userProvider.DeleteUnverifiedUser(ctx, email); err != nil {
			e.emitAudit(ctx, auditEventRegistrationFailure, false, existing.ID, ErrProviderUnavailable, nil)
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	case !errors.Is(err, ErrUserNotFound):
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", ErrProviderUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return err
	}

	userID, err := e.userProvider.CreateUser(ctx, &NewUser{
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Roles:        []Role{RoleUser},
	})
	if err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", ErrProviderUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationSuccess, true, userID, nil, nil)

	e.issueVerificationToken(ctx, userID, email)
	return nil
}

// checkPasswordAcceptable enforces the length policy and consults the
// breach corpus. An unavailable corpus fails open: the password is
// accepted and the outage is audited.
func (e *Engine) checkPasswordAcceptable(ctx context.Context, plaintext string) error {
	if len(plaintext) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	breached, err := e.breach.IsBreached(ctx, plaintext)
	if err != nil {
		e.metricInc(MetricBreachCheckUnavailable)
		e.emitAudit(ctx, auditEventBreachCheckUnavailable, false, "", ErrBreachCheckUnavailable, nil)
		return nil
	}
	if breached {
		e.metricInc(MetricBreachCheckHit)
		e.emitAudit(ctx, auditEventBreachCheckHit, false, "", ErrPasswordBreached, nil)
		return ErrPasswordBreached
	}
	return nil
}

// issueVerificationToken mints a fresh single-use token, stores its digest,
// and hands the plaintext to the mailer. Failures past token storage are
// logged and audited only; the caller's flow is enumeration-protected.
func (e *Engine) issueVerificationToken(ctx context.Context, userID, email string) {
	token, err := newVerificationTokenValue()
	if err != nil {
		log.Print("authkit: verification token generation failed")
		return
	}

	record := &VerificationToken{
		UserID:    userID,
		TokenHash: hashVerificationToken(token),
		ExpiresAt: e.now().Add(e.config.EmailVerification.TokenTTL),
	}
	if err := e.userProvider.SaveVerificationToken(ctx, record); err != nil {
		log.Print("authkit: verification token store failed")
		return
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, userID, nil, nil)

	if e.mailer == nil {
		return
	}
	if err := e.mailer.SendVerificationEmail(ctx, email, token); err != nil {
		e.emitAudit(ctx, auditEventMailDeliveryFailed, false, userID, nil, func() map[string]string {
			return map[string]string{"kind": "verification"}
		})
	}
}
