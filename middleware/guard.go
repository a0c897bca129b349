package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/account"
)

// AdminKeyHeader carries the shared key checked by RequireAdminKey.
const AdminKeyHeader = "X-Admin-Key"

type accountContextKey struct{}

// AccountFromContext returns the account resolved by RequireAccess.
func AccountFromContext(ctx context.Context) (*account.Account, bool) {
	a, ok := ctx.Value(accountContextKey{}).(*account.Account)
	return a, ok && a != nil
}

// RequireAccess resolves the access token (cookie first, then bearer header)
// to an active account and stores it in the request context.
func RequireAccess(engine *accountguard.Engine) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token, ok := engine.Cookies().AccessToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			a, err := engine.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, accountguard.ErrInvalidSession):
				WriteError(w, http.StatusUnauthorized, "Invalid or expired session")
				return
			case errors.Is(err, accountguard.ErrAccountUnavailable):
				WriteError(w, http.StatusNotFound, "User not found")
				return
			default:
				WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey{}, a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdminKey admits requests whose AdminKeyHeader equals key. An empty
// key rejects everything.
func RequireAdminKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				WriteError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
