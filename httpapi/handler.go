package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/middleware"
)

const maxBodyBytes = 1 << 16

// Options configures the HTTP surface.
type Options struct {
	// AdminKey guards /admin routes. Empty disables them.
	AdminKey string
	// TrustForwardedFor takes the client address from X-Forwarded-For.
	TrustForwardedFor bool
	Logger            *slog.Logger
}

// Handler serves the auth routes for one Engine.
type Handler struct {
	engine *accountguard.Engine
	opts   Options
	logger *slog.Logger
}

func New(engine *accountguard.Engine, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, opts: opts, logger: logger}
}

// Routes returns a mux with every route and its guard chain.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	ip := middleware.ClientIP(h.opts.TrustForwardedFor)
	limit := func(route accountguard.RateRoute) middleware.Middleware {
		return middleware.RateLimit(h.engine, route)
	}
	access := middleware.RequireAccess(h.engine)

	mux.Handle("POST /auth/login", middleware.Chain(http.HandlerFunc(h.login), ip, limit(accountguard.RateLogin)))
	mux.Handle("POST /auth/refresh", middleware.Chain(http.HandlerFunc(h.refresh), ip, limit(accountguard.RateRefresh)))
	mux.Handle("POST /auth/logout", middleware.Chain(http.HandlerFunc(h.logout), ip))
	mux.Handle("GET /auth/profile", middleware.Chain(http.HandlerFunc(h.profile), ip, access))
	mux.Handle("PUT /auth/profile", middleware.Chain(http.HandlerFunc(h.updateProfile), ip, access))
	mux.Handle("PUT /auth/password", middleware.Chain(http.HandlerFunc(h.changePassword), ip, limit(accountguard.RateLogin), access))
	mux.Handle("POST /auth/request-password-reset", middleware.Chain(http.HandlerFunc(h.requestReset), ip, limit(accountguard.RateReset)))
	mux.Handle("POST /auth/reset-password", middleware.Chain(http.HandlerFunc(h.resetPassword), ip, limit(accountguard.RateReset)))
	mux.Handle("POST /admin/accounts/{id}/unlock", middleware.Chain(http.HandlerFunc(h.unlock), ip, middleware.RequireAdminKey(h.opts.AdminKey)))
	mux.HandleFunc("GET /healthz", h.healthz)
	return mux
}

type loginResponse struct {
	Message         string         `json:"message"`
	Account         account.Public `json:"user"`
	AccessToken     string         `json:"access_token"`
	AccessExpiresAt time.Time      `json:"access_expires_at"`
	RefreshToken    string         `json:"refresh_token,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.resolveIdentifier()
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, firstProblem(err))
		return
	}

	res, err := h.engine.Login(r.Context(), req.Identifier, req.Password, req.RememberMe)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	cookies := h.engine.Cookies()
	cookies.SetAccess(w, res.AccessToken)
	body := loginResponse{
		Message:         "Login successful",
		Account:         res.Account,
		AccessToken:     res.AccessToken.Value,
		AccessExpiresAt: res.AccessToken.ExpiresAt,
	}
	if res.RefreshToken != nil {
		cookies.SetRefresh(w, *res.RefreshToken)
		body.RefreshToken = res.RefreshToken.Value
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.engine.Cookies().RefreshToken(r)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	access, err := h.engine.Refresh(r.Context(), token)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.engine.Cookies().SetAccess(w, access)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":      access.Value,
		"access_expires_at": access.ExpiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := h.engine.Cookies().AccessToken(r)
	if err := h.engine.Logout(r.Context(), token); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.engine.Cookies().Clear(w)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"user": a.Public()})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, firstProblem(err))
		return
	}

	public, err := h.engine.UpdateProfile(r.Context(), a.ID, accountguard.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    public,
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, firstProblem(err))
		return
	}

	if err := h.engine.ChangePassword(r.Context(), a.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, firstProblem(err))
		return
	}

	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset link has been sent"})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, firstProblem(err))
		return
	}

	err := h.engine.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword)
	if errors.Is(err, accountguard.ErrInvalidOrExpiredToken) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.UnlockAccount(r.Context(), r.PathValue("id")); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No data provided")
		return false
	}
	return true
}
