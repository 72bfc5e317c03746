package authkit

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Password          PasswordConfig
	PendingLogin      PendingLoginConfig
	TOTP              TOTPConfig
	BackupCodes       BackupCodeConfig
	WebAuthn          WebAuthnConfig
	TrustedDevice     TrustedDeviceConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	BreachCheck       BreachCheckConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authkit APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
PENDING LOGIN CONFIG
====================================
*/

// PendingLoginConfig defines a public type used by authkit APIs.
//
// PendingLoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PendingLoginConfig struct {
	ChallengeTTL time.Duration
	MaxAttempts  int
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// TOTPConfig defines a public type used by authkit APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	Skew      int
	SetupTTL  time.Duration
}

// BackupCodeConfig defines a public type used by authkit APIs.
//
// BackupCodeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BackupCodeConfig struct {
	Count    int
	HashCost int
}

// WebAuthnConfig defines a public type used by authkit APIs.
//
// WebAuthnConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WebAuthnConfig struct {
	RPID              string
	RPDisplayName     string
	RPOrigins         []string
	ChallengeTTL      time.Duration
	MaxCredentialName int
}

// TrustedDeviceConfig defines a public type used by authkit APIs.
//
// TrustedDeviceConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TrustedDeviceConfig struct {
	Secret     []byte
	Lifetime   time.Duration
	CookieName string
}

/*
====================================
TOKEN FLOW CONFIG
====================================
*/

// EmailVerificationConfig defines a public type used by authkit APIs.
//
// EmailVerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationConfig struct {
	TokenTTL time.Duration
}

// PasswordResetConfig defines a public type used by authkit APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	TokenTTL time.Duration
	// RevokeTrustedDevices advances the trusted-device epoch after a
	// completed reset.
	RevokeTrustedDevices bool
}

// BreachCheckConfig defines a public type used by authkit APIs.
//
// BreachCheckConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BreachCheckConfig struct {
	Enabled   bool
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig defines a public type used by authkit APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authkit APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by authkit APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode       bool
	RequireSecureCookies bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      16,
			UpgradeOnLogin: true,
		},
		PendingLogin: PendingLoginConfig{
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  5,
		},
		TOTP: TOTPConfig{
			Issuer:    "authkit",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
			SetupTTL:  10 * time.Minute,
		},
		BackupCodes: BackupCodeConfig{
			Count:    10,
			HashCost: 10,
		},
		WebAuthn: WebAuthnConfig{
			ChallengeTTL:      5 * time.Minute,
			MaxCredentialName: 100,
		},
		TrustedDevice: TrustedDeviceConfig{
			Lifetime:   30 * 24 * time.Hour,
			CookieName: "authkit_trusted",
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:             time.Hour,
			RevokeTrustedDevices: true,
		},
		BreachCheck: BreachCheckConfig{
			Enabled:   true,
			BaseURL:   "https://api.pwnedpasswords.com/range/",
			Timeout:   3 * time.Second,
			UserAgent: "authkit-breach-check",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:       false,
			RequireSecureCookies: false,
		},
	}
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.TrustedDevice.Secret = cloneBytes(cfg.TrustedDevice.Secret)
	if cfg.WebAuthn.RPOrigins != nil {
		out.WebAuthn.RPOrigins = append([]string(nil), cfg.WebAuthn.RPOrigins...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	if c.PendingLogin.ChallengeTTL <= 0 {
		return errors.New("PendingLogin ChallengeTTL must be > 0")
	}
	if c.PendingLogin.ChallengeTTL > 15*time.Minute {
		return errors.New("PendingLogin ChallengeTTL must be <= 15m")
	}
	if c.PendingLogin.MaxAttempts <= 0 {
		return errors.New("PendingLogin MaxAttempts must be > 0")
	}

	// The provisioning-URL generator refuses an empty issuer, so catch it
	// here instead of at first enrollment.
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if c.TOTP.SetupTTL <= 0 {
		return errors.New("TOTP SetupTTL must be > 0")
	}

	if c.BackupCodes.Count <= 0 {
		return errors.New("BackupCodes Count must be > 0")
	}
	if c.BackupCodes.HashCost < 4 || c.BackupCodes.HashCost > 31 {
		return errors.New("BackupCodes HashCost must be a valid bcrypt cost")
	}

	// The WebAuthn section is optional: it is enforced at build time when a
	// credential provider is wired in.
	if c.WebAuthn.RPID != "" && len(c.WebAuthn.RPOrigins) == 0 {
		return errors.New("WebAuthn RPOrigins is required when RPID is set")
	}
	if c.WebAuthn.ChallengeTTL <= 0 {
		return errors.New("WebAuthn ChallengeTTL must be > 0")
	}
	if c.WebAuthn.MaxCredentialName <= 0 {
		return errors.New("WebAuthn MaxCredentialName must be > 0")
	}

	if len(c.TrustedDevice.Secret) < 32 {
		return errors.New("TrustedDevice Secret must be >= 32 bytes")
	}
	if c.TrustedDevice.Lifetime <= 0 {
		return errors.New("TrustedDevice Lifetime must be > 0")
	}
	if c.TrustedDevice.CookieName == "" {
		return errors.New("TrustedDevice CookieName is required")
	}

	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	if c.BreachCheck.Enabled {
		if c.BreachCheck.BaseURL == "" {
			return errors.New("BreachCheck BaseURL is required when enabled")
		}
		if c.BreachCheck.Timeout <= 0 {
			return errors.New("BreachCheck Timeout must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Security.ProductionMode {
		if !c.Security.RequireSecureCookies {
			return errors.New("ProductionMode requires RequireSecureCookies")
		}
		if !c.BreachCheck.Enabled {
			return errors.New("ProductionMode requires BreachCheck to be enabled")
		}
		for _, origin := range c.WebAuthn.RPOrigins {
			if strings.HasPrefix(origin, "http://") {
				return errors.New("ProductionMode forbids plain http WebAuthn origins")
			}
		}
	}

	return nil
}
