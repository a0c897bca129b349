package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/accountguard"
)

// RateLimit charges each request against route's budget, keyed by the
// address stored by ClientIP (RemoteAddr when ClientIP did not run).
// Rejected requests get 429 with Retry-After; a limiter outage gets 503.
func RateLimit(engine *accountguard.Engine, route accountguard.RateRoute) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
				return
			}

			key := accountguard.ClientIPFromContext(r.Context())
			if key == "" {
				key = remoteIP(r.RemoteAddr)
			}

			retryAfter, err := engine.Throttle(r.Context(), route, key)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, accountguard.ErrRateLimited):
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			default:
				WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
			}
		})
	}
}
