package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginFailuresPrefix = "auth:login_failures:"

// LoginLimiter counts failed logins per username in fixed windows. Unknown
// and known usernames are counted alike.
type LoginLimiter struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter returns a limiter allowing maxAttempts failures per window.
func NewLoginLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

// Allow reports whether username may attempt another login.
func (l *LoginLimiter) Allow(ctx context.Context, username string) (bool, error) {
	if l.maxAttempts <= 0 {
		return true, nil
	}
	count, err := l.client.Get(ctx, loginFailuresPrefix+username).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return true, err
	}
	return count < l.maxAttempts, nil
}

// RecordFailure counts one failed attempt. The window starts with the first
// failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username string) error {
	key := loginFailuresPrefix + username
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.client.Expire(ctx, key, l.window).Err()
	}
	return nil
}

// Reset clears the failure count after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	return l.client.Del(ctx, loginFailuresPrefix+username).Err()
}
