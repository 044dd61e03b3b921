package profauth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyResetAttempts = "forgot-password-attempts:"

// resetLimiter throttles password-reset email requests per principal.
// The first request anchors the window; further requests inside it
// count against the configured maximum.
type resetLimiter struct {
	redis  *redis.Client
	config PasswordResetConfig
}

func newResetLimiter(redisClient *redis.Client, cfg PasswordResetConfig) *resetLimiter {
	return &resetLimiter{redis: redisClient, config: cfg}
}

// Allow increments the request counter and reports whether this
// request is still within the allowance.
func (l *resetLimiter) Allow(ctx context.Context, externalID string) (bool, error) {
	key := keyResetAttempts + externalID
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.RequestWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return count <= int64(l.config.MaxRequests), nil
}

func (l *resetLimiter) Reset(ctx context.Context, externalID string) error {
	if err := l.redis.Del(ctx, keyResetAttempts+externalID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
