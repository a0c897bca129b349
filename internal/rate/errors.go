package rate

import "errors"

var (
	// ErrRateLimited is returned when a key has used up its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidRule is returned for a rule with no name, limit or window.
	ErrInvalidRule = errors.New("invalid rate limit rule")
)
