package authkit

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stdozor/authkit/password"
)

// Builder defines a public type used by authkit APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	userProvider       UserProvider
	credentialProvider WebAuthnCredentialProvider
	mailer             Mailer
	auditSink          AuditSink

	httpClient    *http.Client
	breachChecker BreachChecker

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// WithUserProvider may return an error when input validation, dependency calls, or security checks fail.
// WithUserProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithCredentialProvider describes the withcredentialprovider operation and its observable behavior.
//
// WithCredentialProvider may return an error when input validation, dependency calls, or security checks fail.
// WithCredentialProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialProvider(cp WebAuthnCredentialProvider) *Builder {
	b.credentialProvider = cp
	return b
}

// WithMailer describes the withmailer operation and its observable behavior.
//
// WithMailer may return an error when input validation, dependency calls, or security checks fail.
// WithMailer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithHTTPClient overrides the client used for outbound breach-range
// lookups. The per-request timeout still comes from the breach-check
// configuration.
//
// WithHTTPClient may return an error when input validation, dependency calls, or security checks fail.
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithBreachChecker replaces the built-in range-API checker entirely.
//
// WithBreachChecker may return an error when input validation, dependency calls, or security checks fail.
// WithBreachChecker does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBreachChecker(checker BreachChecker) *Builder {
	b.breachChecker = checker
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		mailer:       b.mailer,
		now:          time.Now,
	}

	// -------- PASSWORD HASHING --------
	ph, err := password.New(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// The decoy hash absorbs a full verification for unknown emails. Its
	// input is random and thrown away, so it can never verify.
	decoySecret := make([]byte, 32)
	if _, err := rand.Read(decoySecret); err != nil {
		return nil, err
	}
	decoy, err := ph.Hash(hex.EncodeToString(decoySecret))
	if err != nil {
		return nil, err
	}
	engine.decoyHash = decoy

	// -------- SECOND FACTORS --------
	engine.totp = newTOTPManager(cfg.TOTP)
	engine.backupCodes = newBackupCodeManager(cfg.BackupCodes)
	engine.trustedDevices = newTrustedDeviceManager(cfg.TrustedDevice)

	if b.credentialProvider != nil {
		if cfg.WebAuthn.RPID == "" || len(cfg.WebAuthn.RPOrigins) == 0 {
			return nil, errors.New("credential provider requires WebAuthn RPID and RPOrigins")
		}
		rp, err := newRelyingParty(cfg.WebAuthn)
		if err != nil {
			return nil, err
		}
		engine.relyingParty = rp
		engine.credentialProvider = b.credentialProvider
	}

	// -------- BREACH CHECKING --------
	switch {
	case b.breachChecker != nil:
		engine.breach = b.breachChecker
	case cfg.BreachCheck.Enabled:
		client := b.httpClient
		if client == nil {
			client = &http.Client{}
		}
		engine.breach = newHIBPChecker(cfg.BreachCheck, client)
	default:
		engine.breach = noopBreachChecker{}
	}

	// -------- EPHEMERAL STATE --------
	engine.pendingLoginStore = newPendingLoginStore(b.redis)
	engine.challengeStore = newWebauthnChallengeStore(b.redis)
	engine.totpSetupStore = newTOTPSetupStore(b.redis)

	// -------- OBSERVABILITY --------
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
