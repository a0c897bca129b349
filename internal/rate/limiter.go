package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a named budget of Limit hits per Window.
type Rule struct {
	Name   string        `yaml:"name"`
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Validate reports whether the rule can be enforced.
func (r Rule) Validate() error {
	if r.Name == "" || r.Limit <= 0 || r.Window <= 0 {
		return fmt.Errorf("%w: %q limit=%d window=%s", ErrInvalidRule, r.Name, r.Limit, r.Window)
	}
	return nil
}

// Decision describes one counted hit.
type Decision struct {
	Count      int64
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per rule and key in Redis.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Allow counts one hit for key under rule. It returns ErrRateLimited, along
// with the time left in the window, once the count exceeds the limit.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	if err := rule.Validate(); err != nil {
		return Decision{}, err
	}

	k := counterKey(rule.Name, key)
	count, err := l.incrementWithTTL(ctx, k, rule.Window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Count: count, Remaining: rule.Limit - int(count)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count <= int64(rule.Limit) {
		return d, nil
	}

	ttl, err := l.redis.PTTL(ctx, k).Result()
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		// Key lost its expiry (e.g. EXPIRE failed after INCR); restore it so
		// the key cannot stay blocked forever.
		if err := l.redis.Expire(ctx, k, rule.Window).Err(); err != nil {
			return d, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = rule.Window
	}
	d.RetryAfter = ttl
	return d, ErrRateLimited
}

// Count returns the hits recorded for key in the current window.
func (l *Limiter) Count(ctx context.Context, rule Rule, key string) (int64, error) {
	count, err := l.redis.Get(ctx, counterKey(rule.Name, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, rule Rule, key string) error {
	if err := l.redis.Del(ctx, counterKey(rule.Name, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func counterKey(rule, key string) string {
	return "rl:" + rule + ":" + key
}
