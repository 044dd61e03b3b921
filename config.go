package profauth

import (
	"errors"
	"time"
)

// Config defines a public type used by profauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	TOTP          TOTPConfig
	StepUp        StepUpConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by profauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by profauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// MasterTTL and ProfileTTL are the bearer-token lifetimes per principal
	// kind. Master sessions live on the order of weeks, profile sessions on
	// the order of hours.
	MasterTTL  time.Duration
	ProfileTTL time.Duration

	// MasterHeader and ProfileHeader name the request headers the middleware
	// reads the per-kind bearer token from.
	MasterHeader  string
	ProfileHeader string
}

// TTLFor returns the session lifetime configured for kind.
func (c SessionConfig) TTLFor(kind PrincipalKind) time.Duration {
	if kind == KindProfile {
		return c.ProfileTTL
	}
	return c.MasterTTL
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by profauth APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

/*
====================================
STEP-UP CONFIG
====================================
*/

// StepUpConfig governs the step-up (OTP) second factor: challenge delivery
// throttling, wrong-attempt lockout, replay blacklisting, and the short-TTL
// capability session minted on success.
type StepUpConfig struct {
	TokenTTL        time.Duration // step-up capability token lifetime
	RequestCooldown time.Duration // asked-otp throttle window
	MaxAttempts     int           // wrong submissions before lockout
	AttemptWindow   time.Duration // TTL of the wrong-attempt counter
	BlacklistTTL    time.Duration // TTL of accepted-code blacklist entries
	AlertLockTTL    time.Duration // TTL of the security-alert-sent lock
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by profauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

// PasswordResetConfig defines a public type used by profauth APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	MaxRequests   int           // reset requests allowed per window
	RequestWindow time.Duration // TTL of the forgot-password counter
}

// AuditConfig defines a public type used by profauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by profauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Callers override what
// they need and pass the result to [Builder.WithConfig]; signing keys are
// always caller supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "ed25519",
			Issuer:        "profauth",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			MasterTTL:     21 * 24 * time.Hour,
			ProfileTTL:    12 * time.Hour,
			MasterHeader:  "Authorization",
			ProfileHeader: "X-Profile-Authorization",
		},
		TOTP: TOTPConfig{
			Issuer:    "profauth",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		StepUp: StepUpConfig{
			TokenTTL:        15 * time.Minute,
			RequestCooldown: 30 * time.Second,
			MaxAttempts:     3,
			AttemptWindow:   24 * time.Hour,
			BlacklistTTL:    120 * time.Second,
			AlertLockTTL:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
			MaxLength:   128,
		},
		PasswordReset: PasswordResetConfig{
			MaxRequests:   2,
			RequestWindow: 2 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Session.MasterTTL <= 0 || c.Session.ProfileTTL <= 0 {
		return errors.New("session TTLs must be positive")
	}
	if c.Session.ProfileTTL > c.Session.MasterTTL {
		return errors.New("profile session TTL must not exceed master session TTL")
	}
	if c.Session.MasterHeader == "" || c.Session.ProfileHeader == "" {
		return errors.New("bearer header names must be set")
	}
	if c.Session.MasterHeader == c.Session.ProfileHeader {
		return errors.New("master and profile bearer headers must differ")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("totp digits must be between 6 and 10")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 3 {
		return errors.New("totp skew must be between 0 and 3")
	}
	if c.StepUp.TokenTTL <= 0 || c.StepUp.TokenTTL > time.Hour {
		return errors.New("step-up token TTL must be positive and at most one hour")
	}
	if c.StepUp.MaxAttempts <= 0 {
		return errors.New("step-up max attempts must be positive")
	}
	if c.StepUp.RequestCooldown <= 0 || c.StepUp.AttemptWindow <= 0 ||
		c.StepUp.BlacklistTTL <= 0 || c.StepUp.AlertLockTTL <= 0 {
		return errors.New("step-up TTL windows must be positive")
	}
	if c.Password.MinLength < 8 {
		return errors.New("minimum password length must be at least 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("maximum password length below minimum")
	}
	if c.PasswordReset.MaxRequests <= 0 || c.PasswordReset.RequestWindow <= 0 {
		return errors.New("password reset throttle must be configured")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
