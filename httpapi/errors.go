package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/middleware"
)

// writeEngineError maps engine sentinels to status codes:
//
//	400 validation, current password incorrect
//	401 invalid credentials, locked, inactive, invalid session
//	404 account unavailable
//	409 concurrent update
//	429 rate limited
//	500 corrupt credential
//	503 backend unavailable
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *accountguard.ValidationError
	var le *accountguard.LockedError

	switch {
	case errors.As(err, &ve):
		middleware.WriteError(w, http.StatusBadRequest, strings.Join(ve.Problems, "; "))
	case errors.Is(err, accountguard.ErrCurrentPasswordIncorrect):
		middleware.WriteError(w, http.StatusBadRequest, "Current password is incorrect")
	case errors.Is(err, accountguard.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.As(err, &le):
		middleware.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"error":        "Account temporarily locked",
			"locked_until": le.Until.UTC(),
		})
	case errors.Is(err, accountguard.ErrAccountLocked):
		middleware.WriteError(w, http.StatusUnauthorized, "Account temporarily locked")
	case errors.Is(err, accountguard.ErrAccountInactive):
		middleware.WriteError(w, http.StatusUnauthorized, "Account is deactivated")
	case errors.Is(err, accountguard.ErrInvalidSession):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid or expired session")
	case errors.Is(err, accountguard.ErrAccountUnavailable):
		middleware.WriteError(w, http.StatusNotFound, "User not found or inactive")
	case errors.Is(err, accountguard.ErrConcurrentUpdate):
		middleware.WriteError(w, http.StatusConflict, "Request conflicted with another update, please retry")
	case errors.Is(err, accountguard.ErrRateLimited):
		middleware.WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	case errors.Is(err, accountguard.ErrCorruptCredential):
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	case errors.Is(err, accountguard.ErrUnavailable), errors.Is(err, accountguard.ErrEngineNotReady):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "unmapped engine error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
