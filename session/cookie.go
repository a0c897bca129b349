package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAccessCookieName  = "access_token_cookie"
	DefaultRefreshCookieName = "refresh_token_cookie"
)

// CookieConfig controls how tokens are written to the browser.
type CookieConfig struct {
	AccessName  string        `yaml:"access_name"`
	RefreshName string        `yaml:"refresh_name"`
	Path        string        `yaml:"path"`
	Domain      string        `yaml:"domain"`
	Secure      bool          `yaml:"secure"`
	SameSite    http.SameSite `yaml:"-"`
}

// DefaultCookieConfig returns Lax, HttpOnly cookies on path "/".
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		AccessName:  DefaultAccessCookieName,
		RefreshName: DefaultRefreshCookieName,
		Path:        "/",
		SameSite:    http.SameSiteLaxMode,
	}
}

// Cookies writes and reads token cookies.
type Cookies struct {
	cfg CookieConfig
	now func() time.Time
}

// NewCookies fills empty names and path from DefaultCookieConfig. SameSite
// is never weaker than Lax.
func NewCookies(cfg CookieConfig, now func() time.Time) *Cookies {
	def := DefaultCookieConfig()
	if cfg.AccessName == "" {
		cfg.AccessName = def.AccessName
	}
	if cfg.RefreshName == "" {
		cfg.RefreshName = def.RefreshName
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.SameSite != http.SameSiteStrictMode {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if now == nil {
		now = time.Now
	}
	return &Cookies{cfg: cfg, now: now}
}

func (c *Cookies) Config() CookieConfig {
	return c.cfg
}

// SetAccess writes the access token cookie.
func (c *Cookies) SetAccess(w http.ResponseWriter, t Token) {
	http.SetCookie(w, c.cookie(c.cfg.AccessName, t))
}

// SetRefresh writes the refresh token cookie.
func (c *Cookies) SetRefresh(w http.ResponseWriter, t Token) {
	http.SetCookie(w, c.cookie(c.cfg.RefreshName, t))
}

// Clear expires both cookies.
func (c *Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{c.cfg.AccessName, c.cfg.RefreshName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.cfg.Path,
			Domain:   c.cfg.Domain,
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.cfg.Secure,
			SameSite: c.cfg.SameSite,
		})
	}
}

// AccessToken reads the access token from its cookie, then from a bearer
// Authorization header.
func (c *Cookies) AccessToken(r *http.Request) (string, bool) {
	return c.read(r, c.cfg.AccessName)
}

// RefreshToken reads the refresh token from its cookie, then from a bearer
// Authorization header.
func (c *Cookies) RefreshToken(r *http.Request) (string, bool) {
	return c.read(r, c.cfg.RefreshName)
}

func (c *Cookies) cookie(name string, t Token) *http.Cookie {
	maxAge := int(t.ExpiresAt.Sub(c.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    t.Value,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		Expires:  t.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: c.cfg.SameSite,
	}
}

func (c *Cookies) read(r *http.Request, name string) (string, bool) {
	if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return BearerToken(r.Header.Get("Authorization"))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
