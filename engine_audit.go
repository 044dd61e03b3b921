package profauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventValidateFailure        = "validate_failure"
	auditEventLogoutSession          = "logout_session"
	auditEventRevokeAll              = "revoke_all_sessions"
	auditEventStepUpRequested        = "stepup_requested"
	auditEventStepUpThrottled        = "stepup_request_throttled"
	auditEventStepUpConfirmed        = "stepup_confirmed"
	auditEventStepUpFailure          = "stepup_failure"
	auditEventStepUpReplay           = "stepup_replay"
	auditEventStepUpLockout          = "stepup_lockout"
	auditEventProfileCreated         = "profile_created"
	auditEventAccessGranted          = "access_granted"
	auditEventAccessDenied           = "access_denied"
	auditEventMasterRegistered       = "master_registered"
	auditEventEmailConfirmed         = "email_confirmed"
	auditEventPasswordChanged        = "password_changed"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetThrottled = "password_reset_throttled"
	auditEventPasswordResetConfirmed = "password_reset_confirmed"
	auditEventPrincipalDeactivated   = "principal_deactivated"
)

// AuditErrorCode defines a public type used by profauth APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrPrincipalNotFound  AuditErrorCode = "principal_not_found"
	auditErrPrincipalInactive  AuditErrorCode = "principal_inactive"
	auditErrNoAccess           AuditErrorCode = "no_access"
	auditErrOTPThrottled       AuditErrorCode = "otp_throttled"
	auditErrOTPLockedOut       AuditErrorCode = "otp_locked_out"
	auditErrOTPReplayed        AuditErrorCode = "otp_replayed"
	auditErrOTPInvalid         AuditErrorCode = "otp_invalid"
	auditErrResetThrottled     AuditErrorCode = "reset_throttled"
	auditErrResetInvalid       AuditErrorCode = "reset_invalid"
	auditErrConfirmInvalid     AuditErrorCode = "confirm_invalid"
	auditErrDuplicate          AuditErrorCode = "duplicate_identifier"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	kind PrincipalKind,
	principalID string,
	jti string,
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
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Kind:        kind.String(),
		PrincipalID: principalID,
		JTI:         jti,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
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
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrNoToken),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrMissingJTI):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrPrincipalNotFound
	case errors.Is(err, ErrPrincipalInactive):
		return auditErrPrincipalInactive
	case errors.Is(err, ErrNoAccess):
		return auditErrNoAccess
	case errors.Is(err, ErrOTPThrottled):
		return auditErrOTPThrottled
	case errors.Is(err, ErrOTPLockedOut):
		return auditErrOTPLockedOut
	case errors.Is(err, ErrOTPReplayed):
		return auditErrOTPReplayed
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrResetThrottled):
		return auditErrResetThrottled
	case errors.Is(err, ErrResetInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrConfirmInvalid):
		return auditErrConfirmInvalid
	case errors.Is(err, ErrDuplicateIdentifier):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrSMSNotImplemented):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
