package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stdozor/authkit/internal"
	"github.com/stdozor/authkit/password"
)

// Engine defines a public type used by authkit APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config             Config
	userProvider       UserProvider
	credentialProvider WebAuthnCredentialProvider
	mailer             Mailer
	passwordHash       *password.Hasher
	totp               *totpManager
	backupCodes        *backupCodeManager
	trustedDevices     *trustedDeviceManager
	breach             BreachChecker
	relyingParty       relyingParty
	pendingLoginStore  *pendingLoginStore
	challengeStore     *webauthnChallengeStore
	totpSetupStore     *totpSetupStore
	audit              *auditDispatcher
	metrics            *Metrics

	// decoyHash absorbs a full argon2id verification for unknown emails so
	// the lookup miss is not observable through response timing.
	decoyHash string

	now func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedFailures describes the auditdroppedfailures operation and its observable behavior.
//
// AuditDroppedFailures may return an error when input validation, dependency calls, or security checks fail.
// AuditDroppedFailures does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDroppedFailures() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.DroppedFailures()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login authenticates an email/password pair and either completes the
// sign-in or opens a second-factor challenge.
//
// Unknown email, wrong password, and an unverified account are all reported
// as [ErrInvalidCredentials]; nothing in the result or timing distinguishes
// them. When the user has a second factor enrolled and no valid
// trusted-device token was supplied, the returned result carries a
// pending-login ID for [Engine.VerifySecondFactor].
func (e *Engine) Login(ctx context.Context, email, plaintext string, opts LoginOptions) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := e.now()

	user, err := e.userProvider.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn the same hashing cost as the known-user path.
			_, _ = e.passwordHash.Verify(plaintext, e.decoyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrProviderUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "unverified"}
		})
		return nil, ErrInvalidCredentials
	}

	e.maybeRehashPassword(ctx, user, plaintext)

	hints, err := e.secondFactorHints(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrProviderUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if hints == nil {
		e.metricInc(MetricLoginSuccess)
		e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
		e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
		return &LoginResult{Status: LoginStatusFullySignedIn, User: user}, nil
	}

	if opts.TrustedDeviceToken != "" &&
		e.trustedDevices.Validate(opts.TrustedDeviceToken, user.ID, user.TrustedEpoch) {
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricTrustedDeviceBypass)
		e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
		e.emitAudit(ctx, auditEventTrustedDeviceBypass, true, user.ID, nil, nil)
		return &LoginResult{Status: LoginStatusFullySignedIn, User: user}, nil
	}

	pendingLoginID, err := internal.NewChallengeID()
	if err != nil {
		return nil, err
	}

	record := &pendingLogin{
		UserID:      user.ID,
		ExpiresAt:   e.now().Add(e.config.PendingLogin.ChallengeTTL).Unix(),
		TOTPEnabled: hints.TOTPEnabled,
	}
	if err := e.pendingLoginStore.Save(ctx, pendingLoginID, record, e.config.PendingLogin.ChallengeTTL); err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSecondFactorRequired)
	e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
	e.emitAudit(ctx, auditEventSecondFactorRequired, true, user.ID, nil, nil)

	return &LoginResult{
		Status:         LoginStatusSecondFactorRequired,
		PendingLoginID: pendingLoginID,
		SecondFactor:   hints,
	}, nil
}

// maybeRehashPassword upgrades a stored hash whose parameters fall below the
// current configuration. Best effort: a persistence failure never blocks the
// login that just verified.
func (e *Engine) maybeRehashPassword(ctx context.Context, user *UserRecord, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwordHash.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	upgraded, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		return
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
		log.Print("authkit: password hash upgrade update failed")
		return
	}
	e.metricInc(MetricPasswordRehash)
	e.emitAudit(ctx, auditEventPasswordRehash, true, user.ID, nil, nil)
}

// secondFactorHints reports what the user can answer a challenge with, or
// nil when no second factor is enrolled.
func (e *Engine) secondFactorHints(ctx context.Context, user *UserRecord) (*SecondFactorHints, error) {
	hints := &SecondFactorHints{TOTPEnabled: user.TOTPSecret != ""}

	if e.credentialProvider != nil {
		keys, err := e.credentialProvider.GetCredentialsByUser(ctx, user.ID, false)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			hints.WebAuthnCredentialIDs = append(hints.WebAuthnCredentialIDs, key.CredentialID)
		}
	}

	if !hints.TOTPEnabled && len(hints.WebAuthnCredentialIDs) == 0 {
		return nil, nil
	}
	return hints, nil
}
