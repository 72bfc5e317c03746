package authkit

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess               = "login_success"
	auditEventLoginFailure               = "login_failure"
	auditEventSecondFactorRequired       = "second_factor_required"
	auditEventSecondFactorSuccess        = "second_factor_success"
	auditEventSecondFactorFailure        = "second_factor_failure"
	auditEventSecondFactorExceeded       = "second_factor_attempts_exceeded"
	auditEventTrustedDeviceBypass        = "trusted_device_bypass"
	auditEventTrustedDeviceIssued        = "trusted_device_issued"
	auditEventTrustedDevicesRevoked      = "trusted_devices_revoked"
	auditEventRegistrationSuccess        = "registration_success"
	auditEventRegistrationDuplicate      = "registration_duplicate"
	auditEventRegistrationFailure        = "registration_failure"
	auditEventEmailVerificationRequest   = "email_verification_request"
	auditEventEmailVerificationConfirm   = "email_verification_confirm"
	auditEventPasswordResetRequest       = "password_reset_request"
	auditEventPasswordResetConfirm       = "password_reset_confirm"
	auditEventPasswordRehash             = "password_rehash"
	auditEventPasswordChanged            = "password_changed"
	auditEventBreachCheckHit             = "breach_check_hit"
	auditEventBreachCheckUnavailable     = "breach_check_unavailable"
	auditEventTOTPSetupRequested         = "totp_setup_requested"
	auditEventTOTPEnabled                = "totp_enabled"
	auditEventTOTPDisabled               = "totp_disabled"
	auditEventBackupCodesGenerated       = "backup_codes_generated"
	auditEventBackupCodeUsed             = "backup_code_used"
	auditEventBackupCodeFailed           = "backup_code_failed"
	auditEventWebauthnRegisterRequested  = "webauthn_register_requested"
	auditEventWebauthnRegistered         = "webauthn_registered"
	auditEventWebauthnRegisterFailed     = "webauthn_register_failed"
	auditEventWebauthnAssertionRequested = "webauthn_assertion_requested"
	auditEventWebauthnAssertionSuccess   = "webauthn_assertion_success"
	auditEventWebauthnAssertionFailed    = "webauthn_assertion_failed"
	auditEventWebauthnCloneDetected      = "webauthn_clone_detected"
	auditEventPasskeyLoginSuccess        = "passkey_login_success"
	auditEventPasskeyLoginFailure        = "passkey_login_failure"
	auditEventCredentialRemoved          = "webauthn_credential_removed"
	auditEventMailDeliveryFailed         = "mail_delivery_failed"
)

// AuditErrorCode defines a public type used by authkit APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrInvalidToken          AuditErrorCode = "invalid_token"
	auditErrInvalidCode           AuditErrorCode = "invalid_code"
	auditErrPendingLoginExpired   AuditErrorCode = "pending_login_expired"
	auditErrAttemptsExceeded      AuditErrorCode = "attempts_exceeded"
	auditErrNoPendingChallenge    AuditErrorCode = "no_pending_challenge"
	auditErrUnknownCredential     AuditErrorCode = "unknown_credential"
	auditErrWrongUser             AuditErrorCode = "wrong_user"
	auditErrAssertionFailed       AuditErrorCode = "assertion_failed"
	auditErrRegistrationFailed    AuditErrorCode = "registration_failed"
	auditErrCredentialName        AuditErrorCode = "credential_name_invalid"
	auditErrPasswordPolicy        AuditErrorCode = "password_policy"
	auditErrPasswordBreached      AuditErrorCode = "password_breached"
	auditErrBreachUnavailable     AuditErrorCode = "breach_check_unavailable"
	auditErrSecondFactorDisabled  AuditErrorCode = "second_factor_not_enabled"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTokenNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrPendingLoginExpired):
		return auditErrPendingLoginExpired
	case errors.Is(err, ErrPendingLoginAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrNoPendingChallenge):
		return auditErrNoPendingChallenge
	case errors.Is(err, ErrUnknownCredential):
		return auditErrUnknownCredential
	case errors.Is(err, ErrWrongUser):
		return auditErrWrongUser
	case errors.Is(err, ErrAssertionFailed):
		return auditErrAssertionFailed
	case errors.Is(err, ErrRegistrationFailed):
		return auditErrRegistrationFailed
	case errors.Is(err, ErrCredentialNameInvalid):
		return auditErrCredentialName
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordBreached):
		return auditErrPasswordBreached
	case errors.Is(err, ErrBreachCheckUnavailable):
		return auditErrBreachUnavailable
	case errors.Is(err, ErrSecondFactorNotEnabled):
		return auditErrSecondFactorDisabled
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrProviderUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
