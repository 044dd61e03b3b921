package profauth

import "errors"

var (
	// ErrNoToken is an exported constant or variable used by the session authority.
	ErrNoToken = errors.New("no bearer token presented")
	// ErrTokenInvalid is an exported constant or variable used by the session authority.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the session authority.
	ErrTokenExpired = errors.New("token expired")
	// ErrMissingJTI is an exported constant or variable used by the session authority.
	ErrMissingJTI = errors.New("token missing jti claim")
	// ErrSessionNotFound is an exported constant or variable used by the session authority.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPrincipalNotFound is an exported constant or variable used by the session authority.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPrincipalInactive is an exported constant or variable used by the session authority.
	ErrPrincipalInactive = errors.New("principal inactive")
	// ErrInvalidCredentials is an exported constant or variable used by the session authority.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoAccess is an exported constant or variable used by the session authority.
	ErrNoAccess = errors.New("no delegated access to profile")
	// ErrOTPThrottled is an exported constant or variable used by the session authority.
	ErrOTPThrottled = errors.New("otp requested too soon")
	// ErrOTPLockedOut is an exported constant or variable used by the session authority.
	ErrOTPLockedOut = errors.New("otp attempts exceeded")
	// ErrOTPReplayed is an exported constant or variable used by the session authority.
	ErrOTPReplayed = errors.New("otp already used")
	// ErrOTPInvalid is an exported constant or variable used by the session authority.
	ErrOTPInvalid = errors.New("invalid otp code")
	// ErrResetThrottled is an exported constant or variable used by the session authority.
	ErrResetThrottled = errors.New("password reset requested too often")
	// ErrResetInvalid is an exported constant or variable used by the session authority.
	ErrResetInvalid = errors.New("password reset code invalid")
	// ErrConfirmInvalid is an exported constant or variable used by the session authority.
	ErrConfirmInvalid = errors.New("email confirmation code invalid")
	// ErrSMSNotImplemented is an exported constant or variable used by the session authority.
	ErrSMSNotImplemented = errors.New("sms delivery not implemented")
	// ErrDuplicateIdentifier is an exported constant or variable used by the session authority.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	// ErrPasswordPolicy is an exported constant or variable used by the session authority.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the session authority.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrStoreUnavailable is an exported constant or variable used by the session authority.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the session authority.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrNotFound is returned by [Store] implementations when a record is
	// absent. The engine maps it to a caller-facing failure at each boundary;
	// collaborators never surface it to end users directly.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by [Store] implementations on unique-key
	// violations.
	ErrDuplicate = errors.New("duplicate record")
)
