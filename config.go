package accountguard

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/internal/rate"
	"github.com/MrEthical07/accountguard/jwt"
	"github.com/MrEthical07/accountguard/lockout"
	"github.com/MrEthical07/accountguard/password"
	"github.com/MrEthical07/accountguard/reset"
	"github.com/MrEthical07/accountguard/session"
)

// EnvPrefix prefixes every environment override read by LoadConfig.
const EnvPrefix = "ACCOUNTGUARD_"

// Config holds every tunable of the engine and the server binary.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	JWT           JWTConfig           `yaml:"jwt"`
	Password      PasswordConfig      `yaml:"password"`
	Lockout       lockout.Policy      `yaml:"lockout"`
	PasswordReset PasswordResetConfig `yaml:"password_reset"`
	Cookie        CookieConfig        `yaml:"cookie"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Concurrency   ConcurrencyConfig   `yaml:"concurrency"`
	Server        ServerConfig        `yaml:"server"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session token signing.
type JWTConfig struct {
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string `yaml:"signing_method"`
	// Secret is the HS256 key. At least 32 bytes.
	Secret string `yaml:"secret"`
	// PrivateKeyFile and PublicKeyFile hold PEM Ed25519 keys.
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	Leeway         time.Duration `yaml:"leeway"`
	KeyID          string        `yaml:"key_id"`

	privateKey []byte
	publicKey  []byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm and strength policy.
type PasswordConfig struct {
	Hashing password.Config `yaml:"hashing"`
	Policy  password.Policy `yaml:"policy"`
	// UpgradeOnLogin rehashes a stored hash on successful login when it was
	// produced by another algorithm or weaker parameters.
	UpgradeOnLogin bool `yaml:"upgrade_on_login"`
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig configures reset token issuance.
type PasswordResetConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
	// LinkBaseURL, when set, is handed to the Mailer to build reset links.
	LinkBaseURL string `yaml:"link_base_url"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig configures token cookies.
type CookieConfig struct {
	AccessName  string `yaml:"access_name"`
	RefreshName string `yaml:"refresh_name"`
	Path        string `yaml:"path"`
	Domain      string `yaml:"domain"`
	Secure      bool   `yaml:"secure"`
	// SameSite is "lax" (default) or "strict".
	SameSite string `yaml:"same_site"`
}

// Session returns the cookie settings in session package form.
func (c CookieConfig) Session() session.CookieConfig {
	sameSite := http.SameSiteLaxMode
	if strings.EqualFold(c.SameSite, "strict") {
		sameSite = http.SameSiteStrictMode
	}
	return session.CookieConfig{
		AccessName:  c.AccessName,
		RefreshName: c.RefreshName,
		Path:        c.Path,
		Domain:      c.Domain,
		Secure:      c.Secure,
		SameSite:    sameSite,
	}
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateRule allows Limit requests per Window for one key.
type RateRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Rule converts r into the limiter's form under name.
func (r RateRule) Rule(name string) rate.Rule {
	return rate.Rule{Name: name, Limit: r.Limit, Window: r.Window}
}

// RateLimitConfig configures per-client-address budgets. Rate limiting is
// applied by the HTTP middleware and needs a Redis client.
type RateLimitConfig struct {
	Enabled bool     `yaml:"enabled"`
	Login   RateRule `yaml:"login"`
	Refresh RateRule `yaml:"refresh"`
	Reset   RateRule `yaml:"reset"`
	// FailOpen lets requests through when Redis is unreachable.
	FailOpen bool `yaml:"fail_open"`
}

/*
====================================
AUDIT / METRICS / CONCURRENCY
====================================
*/

// AuditConfig controls security event delivery.
type AuditConfig struct {
	// Async relays events through a buffered Dispatcher.
	Async      bool `yaml:"async"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

func (c AuditConfig) dispatcher() audit.DispatcherConfig {
	return audit.DispatcherConfig{BufferSize: c.BufferSize, DropIfFull: c.DropIfFull}
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// ConcurrencyConfig bounds optimistic retries of a read-modify-write.
type ConcurrencyConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig is read by the server binary only.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	// RedisAddr is a host:port, or "memory" for an in-process Redis.
	RedisAddr string `yaml:"redis_addr"`
	// AdminKey guards the admin routes. Empty disables them.
	AdminKey string `yaml:"admin_key"`
	// TrustForwardedFor takes client addresses from X-Forwarded-For. Enable
	// only behind a proxy that sets it.
	TrustForwardedFor bool   `yaml:"trust_forwarded_for"`
	LogFormat         string `yaml:"log_format"`
	LogLevel          string `yaml:"log_level"`
}

// DefaultConfig returns the production defaults. JWT.Secret is left empty
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     8 * time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        "accountguard",
		},
		Password: PasswordConfig{
			Hashing: password.Config{
				Algorithm:  password.AlgorithmBcrypt,
				BcryptCost: password.DefaultBcryptCost,
				Argon2:     password.DefaultArgon2Config(),
			},
			Policy:         password.DefaultPolicy(),
			UpgradeOnLogin: true,
		},
		Lockout: lockout.DefaultPolicy(),
		PasswordReset: PasswordResetConfig{
			TokenTTL: reset.DefaultTTL,
		},
		Cookie: CookieConfig{
			AccessName:  session.DefaultAccessCookieName,
			RefreshName: session.DefaultRefreshCookieName,
			Path:        "/",
			Secure:      true,
			SameSite:    "lax",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Login:   RateRule{Limit: 5, Window: time.Minute},
			Refresh: RateRule{Limit: 30, Window: time.Minute},
			Reset:   RateRule{Limit: 3, Window: 15 * time.Minute},
		},
		Audit: AuditConfig{
			Async:      true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Concurrency: ConcurrencyConfig{
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			LogFormat: "json",
			LogLevel:  "info",
		},
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt: access_ttl and refresh_ttl must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("jwt: refresh_ttl must not be shorter than access_ttl")
	}
	switch jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)) {
	case jwt.MethodHS256, "":
		if len(c.JWT.Secret) < 32 {
			return errors.New("jwt: secret must be at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if c.JWT.PublicKeyFile == "" && len(c.JWT.publicKey) == 0 {
			return errors.New("jwt: ed25519 requires public_key_file")
		}
	default:
		return fmt.Errorf("jwt: unsupported signing_method %q", c.JWT.SigningMethod)
	}

	switch c.Password.Hashing.Algorithm {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2:
	default:
		return fmt.Errorf("password: unsupported algorithm %q", c.Password.Hashing.Algorithm)
	}
	if c.Password.Policy.MinLength < 1 {
		return errors.New("password: policy min_length must be at least 1")
	}

	if err := c.Lockout.Validate(); err != nil {
		return fmt.Errorf("lockout: %w", err)
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("password_reset: token_ttl must be positive")
	}

	switch strings.ToLower(c.Cookie.SameSite) {
	case "", "lax", "strict":
	default:
		return fmt.Errorf("cookie: same_site %q is weaker than lax", c.Cookie.SameSite)
	}

	if c.RateLimit.Enabled {
		for name, r := range map[string]RateRule{"login": c.RateLimit.Login, "refresh": c.RateLimit.Refresh, "reset": c.RateLimit.Reset} {
			if r.Limit <= 0 || r.Window <= 0 {
				return fmt.Errorf("rate_limit: %s rule needs a positive limit and window", name)
			}
		}
	}

	if c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("audit: buffer_size must be positive when async")
	}
	if c.Concurrency.MaxRetries < 0 {
		return errors.New("concurrency: max_retries must not be negative")
	}
	return nil
}

// LoadConfig reads a YAML file over DefaultConfig, applies ACCOUNTGUARD_*
// environment overrides, loads key files and validates the result. An empty
// path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.loadKeys(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_PRIVATE_KEY_FILE", &c.JWT.PrivateKeyFile)
	str("JWT_PUBLIC_KEY_FILE", &c.JWT.PublicKeyFile)
	str("DATABASE_URL", &c.Server.DatabaseURL)
	str("REDIS_ADDR", &c.Server.RedisAddr)
	str("ADMIN_KEY", &c.Server.AdminKey)
	str("ADDR", &c.Server.Addr)
	str("LOG_FORMAT", &c.Server.LogFormat)
	str("LOG_LEVEL", &c.Server.LogLevel)

	if v, ok := lookup(EnvPrefix + "COOKIE_SECURE"); ok {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCOOKIE_SECURE: %w", EnvPrefix, err)
		}
		c.Cookie.Secure = secure
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_ENABLED: %w", EnvPrefix, err)
		}
		c.RateLimit.Enabled = enabled
	}
	return nil
}

func (c *Config) loadKeys() error {
	if c.JWT.PrivateKeyFile != "" {
		key, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("read jwt private key: %w", err)
		}
		c.JWT.privateKey = key
	}
	if c.JWT.PublicKeyFile != "" {
		key, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("read jwt public key: %w", err)
		}
		c.JWT.publicKey = key
	}
	return nil
}

// WithEd25519Keys sets in-memory Ed25519 keys, bypassing the key files.
func (c JWTConfig) WithEd25519Keys(private, public []byte) JWTConfig {
	c.SigningMethod = string(jwt.MethodEd25519)
	c.privateKey = append([]byte(nil), private...)
	c.publicKey = append([]byte(nil), public...)
	return c
}

func (c JWTConfig) manager() jwt.Config {
	cfg := jwt.Config{
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.SigningMethod)),
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
	}
	if cfg.SigningMethod == jwt.MethodEd25519 {
		cfg.PrivateKey = c.privateKey
		cfg.PublicKey = c.publicKey
	} else {
		cfg.PrivateKey = []byte(c.Secret)
	}
	return cfg
}
