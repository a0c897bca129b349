package accountguard

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/internal/rate"
	"github.com/MrEthical07/accountguard/jwt"
	"github.com/MrEthical07/accountguard/lockout"
	"github.com/MrEthical07/accountguard/password"
	"github.com/MrEthical07/accountguard/reset"
	"github.com/MrEthical07/accountguard/session"
)

// dummyPassword is hashed once at Build so unknown identifiers cost one
// verification, like known ones.
const dummyPassword = "accountguard-timing-equalizer"

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts account.Repository
	sink     audit.Sink
	mailer   Mailer
	logger   *slog.Logger
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRepository sets the account repository. Required.
func (b *Builder) WithRepository(repo account.Repository) *Builder {
	b.accounts = repo
	return b
}

// WithRedis sets the client used for rate limiting. Without it rate limiting
// is off.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets where security events go. The default logs them
// through the engine logger.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.sink = sink
	return b
}

// WithMailer sets the reset token delivery collaborator. The default only
// logs.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for lockout, expiry and token timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the components.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account repository required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		logger:   logger,
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
		policy:   cfg.Password.Policy,
	}

	// -------- SECURITY EVENTS --------
	sink := b.sink
	if sink == nil {
		sink = audit.NewSlogSink(logger)
	}
	if cfg.Audit.Async {
		engine.dispatcher = audit.NewDispatcher(cfg.Audit.dispatcher(), sink, logger)
		sink = engine.dispatcher
	}
	engine.events = audit.NewEmitter(sink, logger, now)

	// -------- CREDENTIALS --------
	hasher, err := password.New(cfg.Password.Hashing)
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.hasher = hasher
	engine.dummyHash, err = hasher.Hash(dummyPassword)
	if err != nil {
		engine.Close()
		return nil, err
	}

	engine.lockout = lockout.New(cfg.Lockout, engine.events, now)
	engine.resets = reset.New(hasher, engine.events, cfg.PasswordReset.TokenTTL)

	// -------- SESSIONS --------
	tokens, err := jwt.NewManager(cfg.JWT.manager())
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.issuer = session.NewIssuer(tokens, b.accounts)
	engine.cookies = session.NewCookies(cfg.Cookie.Session(), now)

	// -------- COLLABORATORS --------
	engine.mailer = b.mailer
	if engine.mailer == nil {
		engine.mailer = &LogMailer{Logger: logger, LinkBaseURL: cfg.PasswordReset.LinkBaseURL}
	}

	if cfg.RateLimit.Enabled {
		if b.redis == nil {
			logger.Warn("rate limiting disabled: no redis client configured")
		} else {
			engine.limiter = rate.New(b.redis)
		}
	}

	b.built = true

	return engine, nil
}
