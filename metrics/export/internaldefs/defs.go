package internaldefs

import (
	authkit "github.com/stdozor/authkit"
)

// CounterDef defines a public type used by authkit APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authkit APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricSecondFactorRequired, Name: "authkit_second_factor_required_total", Help: "Login flows requiring a second factor."},
	{ID: authkit.MetricSecondFactorSuccess, Name: "authkit_second_factor_success_total", Help: "Successful second-factor confirmations."},
	{ID: authkit.MetricSecondFactorFailure, Name: "authkit_second_factor_failure_total", Help: "Failed second-factor confirmations."},
	{ID: authkit.MetricSecondFactorAttemptsExceeded, Name: "authkit_second_factor_attempts_exceeded_total", Help: "Pending logins invalidated due to attempt cap."},
	{ID: authkit.MetricTrustedDeviceBypass, Name: "authkit_trusted_device_bypass_total", Help: "Second-factor prompts skipped by trusted-device tokens."},
	{ID: authkit.MetricTrustedDeviceIssued, Name: "authkit_trusted_device_issued_total", Help: "Issued trusted-device tokens."},
	{ID: authkit.MetricTrustedDevicesRevoked, Name: "authkit_trusted_devices_revoked_total", Help: "Trusted-device revoke-all operations."},
	{ID: authkit.MetricTOTPSuccess, Name: "authkit_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: authkit.MetricTOTPFailure, Name: "authkit_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: authkit.MetricTOTPEnabled, Name: "authkit_totp_enabled_total", Help: "TOTP enrollment confirmations."},
	{ID: authkit.MetricTOTPDisabled, Name: "authkit_totp_disabled_total", Help: "TOTP disable operations."},
	{ID: authkit.MetricBackupCodeUsed, Name: "authkit_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authkit.MetricBackupCodeFailed, Name: "authkit_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: authkit.MetricBackupCodesGenerated, Name: "authkit_backup_codes_generated_total", Help: "Backup-code generation operations."},
	{ID: authkit.MetricWebauthnRegistered, Name: "authkit_webauthn_registered_total", Help: "Registered WebAuthn credentials."},
	{ID: authkit.MetricWebauthnRegistrationFailed, Name: "authkit_webauthn_registration_failed_total", Help: "Failed WebAuthn registration ceremonies."},
	{ID: authkit.MetricWebauthnAssertionSuccess, Name: "authkit_webauthn_assertion_success_total", Help: "Successful WebAuthn assertions."},
	{ID: authkit.MetricWebauthnAssertionFailed, Name: "authkit_webauthn_assertion_failed_total", Help: "Failed WebAuthn assertions."},
	{ID: authkit.MetricWebauthnCloneDetected, Name: "authkit_webauthn_clone_detected_total", Help: "Assertions rejected by signature-counter clone detection."},
	{ID: authkit.MetricPasskeyLoginSuccess, Name: "authkit_passkey_login_success_total", Help: "Successful passkey logins."},
	{ID: authkit.MetricPasskeyLoginFailure, Name: "authkit_passkey_login_failure_total", Help: "Failed passkey logins."},
	{ID: authkit.MetricRegistrationSuccess, Name: "authkit_registration_success_total", Help: "Successful account registrations."},
	{ID: authkit.MetricRegistrationDuplicate, Name: "authkit_registration_duplicate_total", Help: "Registration attempts for already-verified emails."},
	{ID: authkit.MetricEmailVerificationRequest, Name: "authkit_email_verification_request_total", Help: "Email verification requests."},
	{ID: authkit.MetricEmailVerificationConfirm, Name: "authkit_email_verification_confirm_total", Help: "Successful email verifications."},
	{ID: authkit.MetricPasswordResetRequest, Name: "authkit_password_reset_request_total", Help: "Password reset requests."},
	{ID: authkit.MetricPasswordResetConfirm, Name: "authkit_password_reset_confirm_total", Help: "Successful password reset confirmations."},
	{ID: authkit.MetricPasswordRehash, Name: "authkit_password_rehash_total", Help: "Password hashes upgraded during login."},
	{ID: authkit.MetricPasswordChanged, Name: "authkit_password_change_total", Help: "Passwords changed by authenticated users."},
	{ID: authkit.MetricBreachCheckHit, Name: "authkit_breach_check_hit_total", Help: "Passwords rejected as breached."},
	{ID: authkit.MetricBreachCheckUnavailable, Name: "authkit_breach_check_unavailable_total", Help: "Breach-range lookups that failed open."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricLoginLatency, Name: "authkit_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
