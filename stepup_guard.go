package profauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	keyBlacklistedOTP = "blacklisted-otp:"
	keyAskedOTP       = "asked-otp:"
	keyOTPAttempts    = "otp-attempts:"
	keyOTPSession     = "otp-sess:"
	keyAlertLock      = "security-alert-email-lock:"
)

// stepUpGuard owns every ephemeral key the step-up flow touches:
// request cooldown, failed-attempt counter, consumed-code blacklist,
// the short-lived step-up session, and the lockout alert lock. All
// keys are scoped by the principal's external id, never the database
// row id.
type stepUpGuard struct {
	redis  *redis.Client
	config StepUpConfig
}

func newStepUpGuard(redisClient *redis.Client, cfg StepUpConfig) *stepUpGuard {
	return &stepUpGuard{redis: redisClient, config: cfg}
}

type stepUpSession struct {
	Kind       PrincipalKind `json:"kind"`
	ID         int64         `json:"id"`
	ExternalID string        `json:"ext"`
	IssuedAt   int64         `json:"iat"`
}

/*
====================================
REQUEST COOLDOWN
====================================
*/

// MarkAsked sets the cooldown key iff it is absent. It returns false
// when a prior request is still inside the cooldown window.
func (g *stepUpGuard) MarkAsked(ctx context.Context, externalID string) (bool, error) {
	ok, err := g.redis.SetNX(ctx, keyAskedOTP+externalID, "1", g.config.RequestCooldown).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

/*
====================================
ATTEMPT COUNTER
====================================
*/

// Attempts reads the current failed-attempt count. A missing key means
// zero failures in the window.
func (g *stepUpGuard) Attempts(ctx context.Context, externalID string) (int64, error) {
	count, err := g.redis.Get(ctx, keyOTPAttempts+externalID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// RecordFailure atomically increments the failed-attempt counter and
// returns the new count. The window TTL is attached on the first
// failure only, so the window anchors at the first miss rather than
// sliding with each one.
func (g *stepUpGuard) RecordFailure(ctx context.Context, externalID string) (int64, error) {
	key := keyOTPAttempts + externalID
	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := g.redis.Expire(ctx, key, g.config.AttemptWindow).Err(); err != nil {
			return count, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return count, nil
}

func (g *stepUpGuard) ResetAttempts(ctx context.Context, externalID string) error {
	if err := g.redis.Del(ctx, keyOTPAttempts+externalID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

/*
====================================
CODE BLACKLIST
====================================
*/

// IsBlacklisted reports whether this exact code was already consumed
// by this principal inside the blacklist TTL.
func (g *stepUpGuard) IsBlacklisted(ctx context.Context, externalID, code string) (bool, error) {
	n, err := g.redis.Exists(ctx, keyBlacklistedOTP+externalID+":"+code).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// ClaimCode blacklists the code iff no one has claimed it yet. The
// SETNX is the single point of truth for single-use: out of any number
// of concurrent submissions of the same code, exactly one claim
// returns true.
func (g *stepUpGuard) ClaimCode(ctx context.Context, externalID, code string) (bool, error) {
	key := keyBlacklistedOTP + externalID + ":" + code
	ok, err := g.redis.SetNX(ctx, key, "1", g.config.BlacklistTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

/*
====================================
STEP-UP SESSION
====================================
*/

// PutSession stores the server-side half of a freshly minted step-up
// token. The key TTL is the sole authority on step-up expiry.
func (g *stepUpGuard) PutSession(ctx context.Context, jti string, sess stepUpSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := g.redis.Set(ctx, keyOTPSession+jti, payload, g.config.TokenTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (g *stepUpGuard) GetSession(ctx context.Context, jti string) (*stepUpSession, error) {
	raw, err := g.redis.Get(ctx, keyOTPSession+jti).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var sess stepUpSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (g *stepUpGuard) DeleteSession(ctx context.Context, jti string) error {
	if err := g.redis.Del(ctx, keyOTPSession+jti).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

/*
====================================
ALERT LOCK
====================================
*/

// AcquireAlertLock returns true exactly once per lock TTL, so the
// lockout alert email fires once no matter how many rejected attempts
// follow.
func (g *stepUpGuard) AcquireAlertLock(ctx context.Context, externalID string) (bool, error) {
	ok, err := g.redis.SetNX(ctx, keyAlertLock+externalID, "1", g.config.AlertLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}
