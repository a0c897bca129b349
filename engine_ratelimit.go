package accountguard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/accountguard/internal/rate"
)

// RateRoute names a request budget from RateLimitConfig.
type RateRoute string

const (
	RateLogin   RateRoute = "login"
	RateRefresh RateRoute = "refresh"
	RateReset   RateRoute = "reset"
)

// Throttle counts one request for key (usually the client address) against
// route's budget. Over budget it returns ErrRateLimited and how long until
// the window ends. With rate limiting off it always allows.
//
// When Redis is unreachable the request is refused with ErrUnavailable, or
// allowed when RateLimit.FailOpen is set.
func (e *Engine) Throttle(ctx context.Context, route RateRoute, key string) (time.Duration, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.limiter == nil {
		return 0, nil
	}

	rule, ok := e.rateRule(route)
	if !ok {
		return 0, nil
	}

	decision, err := e.limiter.Allow(ctx, rule, key)
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		e.logger.WarnContext(ctx, "request rate limited",
			slog.String("route", string(route)),
			slog.String("key", key),
			slog.Int64("count", decision.Count))
		return decision.RetryAfter, ErrRateLimited
	default:
		if e.config.RateLimit.FailOpen {
			e.logger.WarnContext(ctx, "rate limiter unavailable, failing open",
				slog.String("route", string(route)),
				slog.Any("error", err))
			return 0, nil
		}
		return 0, e.backend(ctx, "throttle", err)
	}
}

// Ping checks the backends the engine depends on at request time.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.limiter != nil {
		if err := e.limiter.Ping(ctx); err != nil {
			return e.backend(ctx, "ping", err)
		}
	}
	return nil
}

func (e *Engine) rateRule(route RateRoute) (rate.Rule, bool) {
	switch route {
	case RateLogin:
		return e.config.RateLimit.Login.Rule(string(route)), true
	case RateRefresh:
		return e.config.RateLimit.Refresh.Rule(string(route)), true
	case RateReset:
		return e.config.RateLimit.Reset.Rule(string(route)), true
	default:
		return rate.Rule{}, false
	}
}
