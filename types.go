package authkit

import (
	"context"
	"time"
)

// Role defines a public type used by authkit APIs.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role uint8

const (
	// RoleUser is an exported constant or variable used by the authentication engine.
	RoleUser Role = iota
	// RoleAdmin is an exported constant or variable used by the authentication engine.
	RoleAdmin
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole describes the parserole operation and its observable behavior.
//
// ParseRole may return an error when input validation, dependency calls, or security checks fail.
// ParseRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, ErrRoleInvalid
	}
}

// UserRecord defines a public type used by authkit APIs.
//
// UserRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type UserRecord struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Roles        []Role
	Verified     bool
	TrustedEpoch uint32
	TOTPSecret   string // base32, empty when TOTP is not enrolled
}

// NewUser defines a public type used by authkit APIs.
//
// NewUser instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NewUser struct {
	Email        string
	DisplayName  string
	PasswordHash string
	Roles        []Role
}

// VerificationToken defines a public type used by authkit APIs.
//
// VerificationToken instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationToken struct {
	UserID    string
	TokenHash [32]byte
	ExpiresAt time.Time
}

// ResetRequest defines a public type used by authkit APIs.
//
// ResetRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetRequest struct {
	UserID       string
	Selector     string
	VerifierHash string
	ExpiresAt    time.Time
}

// WebAuthnCredential defines a public type used by authkit APIs.
//
// WebAuthnCredential instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WebAuthnCredential struct {
	UserID          string
	Name            string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	Transports      []string
	AAGUID          string
	SignCount       uint32
	IsPasskey       bool
	UserHandle      []byte
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	LastUsedAt      time.Time
}

// UserProvider is the durable credential store contract the host application
// implements. All methods must be safe for concurrent use. Lookup methods
// return [ErrUserNotFound] (or [ErrTokenNotFound]) when no row matches;
// any other error is treated as a backend failure.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (*UserRecord, error)

	// CreateUser persists a new unverified account and returns its ID.
	CreateUser(ctx context.Context, user *NewUser) (string, error)
	// DeleteUnverifiedUser removes an account only while it is unverified.
	DeleteUnverifiedUser(ctx context.Context, email string) error

	UpdatePasswordHash(ctx context.Context, userID string, encodedHash string) error
	MarkVerified(ctx context.Context, userID string) error

	SetTOTPSecret(ctx context.Context, userID string, secret string) error
	ClearTOTPSecret(ctx context.Context, userID string) error

	GetBackupCodeHashes(ctx context.Context, userID string) ([]string, error)
	// ReplaceBackupCodeHashes swaps the whole hash set atomically. It is
	// used for enrollment and regeneration, never for redemption.
	ReplaceBackupCodeHashes(ctx context.Context, userID string, hashes []string) error
	// RemoveBackupCodeHash deletes exactly the given hash from the user's
	// set and reports whether it was present. The check-and-delete must be
	// atomic: when two callers race on the same hash, exactly one sees
	// true. The engine redeems a backup code only after a true return.
	RemoveBackupCodeHash(ctx context.Context, userID string, hash string) (bool, error)

	// IncrementTrustedEpoch advances the user's trusted-device epoch and
	// returns the new value. Every outstanding trusted-device token minted
	// under an older epoch becomes invalid.
	IncrementTrustedEpoch(ctx context.Context, userID string) (uint32, error)

	// SaveVerificationToken replaces any outstanding verification token for
	// the token's user.
	SaveVerificationToken(ctx context.Context, token *VerificationToken) error
	// ConsumeVerificationToken atomically looks up and deletes the token with
	// the given hash. A second call with the same hash returns ErrTokenNotFound.
	ConsumeVerificationToken(ctx context.Context, tokenHash [32]byte) (*VerificationToken, error)

	// ReplaceResetRequest deletes any prior reset request for the request's
	// user before inserting, so at most one request is live per user.
	ReplaceResetRequest(ctx context.Context, request *ResetRequest) error
	GetResetRequestBySelector(ctx context.Context, selector string) (*ResetRequest, error)
	// ConsumeResetRequest atomically looks up and deletes the request with
	// the given selector, mirroring ConsumeVerificationToken. A second call
	// for the same selector returns ErrTokenNotFound, so two confirms
	// racing on one token admit at most one.
	ConsumeResetRequest(ctx context.Context, selector string) (*ResetRequest, error)
	DeleteResetRequest(ctx context.Context, selector string) error
}

// WebAuthnCredentialProvider is the durable store contract for WebAuthn
// credential descriptors. Lookups return [ErrCredentialNotFound] when no
// row matches.
type WebAuthnCredentialProvider interface {
	CreateCredential(ctx context.Context, credential *WebAuthnCredential) error
	GetCredentialByID(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error)
	// GetCredentialsByUser lists one role of a user's credentials: passkeys
	// when passkey is true, second-factor keys otherwise.
	GetCredentialsByUser(ctx context.Context, userID string, passkey bool) ([]*WebAuthnCredential, error)
	// UpdateSignCount persists a new signature counter and bumps last-used.
	UpdateSignCount(ctx context.Context, credentialID []byte, count uint32) error
	DeleteCredential(ctx context.Context, userID string, credentialID []byte) error
}

// Mailer delivers account emails. The engine calls it best-effort on
// enumeration-protected paths: a delivery failure is audited, never
// surfaced to the caller.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email string, token string) error
	SendPasswordResetEmail(ctx context.Context, email string, token string) error
}

// LoginStatus defines a public type used by authkit APIs.
//
// LoginStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginStatus uint8

const (
	// LoginStatusFullySignedIn is an exported constant or variable used by the authentication engine.
	LoginStatusFullySignedIn LoginStatus = iota
	// LoginStatusSecondFactorRequired is an exported constant or variable used by the authentication engine.
	LoginStatusSecondFactorRequired
)

// SecondFactorHints defines a public type used by authkit APIs.
//
// SecondFactorHints instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecondFactorHints struct {
	TOTPEnabled           bool
	WebAuthnCredentialIDs [][]byte
}

// LoginResult defines a public type used by authkit APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginResult struct {
	Status LoginStatus
	User   *UserRecord

	// PendingLoginID and SecondFactor are set only while Status is
	// LoginStatusSecondFactorRequired.
	PendingLoginID string
	SecondFactor   *SecondFactorHints

	// TrustedDeviceToken is set when a second-factor verification asked for
	// the device to be remembered.
	TrustedDeviceToken string
}

// LoginOptions defines a public type used by authkit APIs.
//
// LoginOptions instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginOptions struct {
	// TrustedDeviceToken, when present and valid for the authenticating user,
	// satisfies the second factor without a challenge.
	TrustedDeviceToken string
}

// SecondFactorOptions defines a public type used by authkit APIs.
//
// SecondFactorOptions instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecondFactorOptions struct {
	// TrustDevice mints a trusted-device token on successful verification.
	TrustDevice bool
}

// RegisterRequest defines a public type used by authkit APIs.
//
// RegisterRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterRequest struct {
	Email       string
	DisplayName string
	Password    string
}

// TOTPSetup defines a public type used by authkit APIs.
//
// TOTPSetup instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPSetup struct {
	SecretBase32    string
	ProvisioningURL string
}
