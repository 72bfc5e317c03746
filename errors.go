package authkit

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenNotFound is an exported constant or variable used by the authentication engine.
	ErrTokenNotFound = errors.New("token not found")
	// ErrCredentialNotFound is an exported constant or variable used by the authentication engine.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrInvalidOrExpiredToken is an exported constant or variable used by the authentication engine.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidCode is an exported constant or variable used by the authentication engine.
	ErrInvalidCode = errors.New("invalid code")
	// ErrPendingLoginExpired is an exported constant or variable used by the authentication engine.
	ErrPendingLoginExpired = errors.New("pending login expired or consumed")
	// ErrPendingLoginAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrPendingLoginAttemptsExceeded = errors.New("pending login attempts exceeded")
	// ErrNoPendingChallenge is an exported constant or variable used by the authentication engine.
	ErrNoPendingChallenge = errors.New("no pending challenge")
	// ErrUnknownCredential is an exported constant or variable used by the authentication engine.
	ErrUnknownCredential = errors.New("unknown credential")
	// ErrWrongUser is an exported constant or variable used by the authentication engine.
	ErrWrongUser = errors.New("credential belongs to a different user")
	// ErrAssertionFailed is an exported constant or variable used by the authentication engine.
	ErrAssertionFailed = errors.New("assertion verification failed")
	// ErrRegistrationFailed is an exported constant or variable used by the authentication engine.
	ErrRegistrationFailed = errors.New("credential registration failed")
	// ErrCredentialNameInvalid is an exported constant or variable used by the authentication engine.
	ErrCredentialNameInvalid = errors.New("invalid credential name")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrPasswordBreached is an exported constant or variable used by the authentication engine.
	ErrPasswordBreached = errors.New("password found in breach corpus")
	// ErrBreachCheckUnavailable is an exported constant or variable used by the authentication engine.
	ErrBreachCheckUnavailable = errors.New("breach check unavailable")
	// ErrSecondFactorNotEnabled is an exported constant or variable used by the authentication engine.
	ErrSecondFactorNotEnabled = errors.New("no second factor enabled")
	// ErrRoleInvalid is an exported constant or variable used by the authentication engine.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("ephemeral store unavailable")
	// ErrProviderUnavailable is an exported constant or variable used by the authentication engine.
	ErrProviderUnavailable = errors.New("credential store unavailable")
)
