package accountguard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/internal/rate"
	"github.com/MrEthical07/accountguard/lockout"
	"github.com/MrEthical07/accountguard/password"
	"github.com/MrEthical07/accountguard/reset"
	"github.com/MrEthical07/accountguard/session"
)

// Engine runs the account-security operations. Construct it with
// [Builder.Build]; it is safe for concurrent use.
type Engine struct {
	config   Config
	accounts account.Repository

	hasher    *password.Multi
	dummyHash string
	policy    password.Policy
	lockout   *lockout.Machine
	resets    *reset.Manager
	issuer    *session.Issuer
	cookies   *session.Cookies

	events     *audit.Emitter
	dispatcher *audit.Dispatcher
	mailer     Mailer
	limiter    *rate.Limiter
	metrics    *Metrics

	logger *slog.Logger
	now    func() time.Time
	closed atomic.Bool
}

// LoginResult is returned by a successful Login. RefreshToken is nil unless
// the caller asked to be remembered.
type LoginResult struct {
	Account      account.Public
	AccessToken  session.Token
	RefreshToken *session.Token
}

// Close flushes pending security events and stops the async dispatcher.
// Operations after Close return ErrEngineNotReady.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.dispatcher != nil {
		e.dispatcher.Close()
	}
}

// AuditDropped reports events dropped by a full async buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.dispatcher == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// AuditFailed reports async events the sink rejected.
func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.dispatcher == nil {
		return 0
	}
	return e.dispatcher.Failed()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Cookies returns the cookie transport configured for this engine.
func (e *Engine) Cookies() *session.Cookies {
	if e == nil {
		return nil
	}
	return e.cookies
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e != nil && e.metrics != nil {
		e.metrics.Inc(id)
	}
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates identifier (username or email, case-insensitive) with
// plaintext. The checks run in order: lockout, password, active flag.
//
// Unknown identifiers and wrong passwords both return ErrInvalidCredentials
// and both cost one hash verification. A failure that crosses the lockout
// threshold returns *LockedError, as does any attempt while locked, even with
// the right password.
func (e *Engine) Login(ctx context.Context, identifier, plaintext string, rememberMe bool) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(started)) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plaintext == "" {
		return nil, &ValidationError{Field: "identifier", Problems: []string{"Username/email and password are required"}}
	}

	var (
		verdict     error
		blocked     bool
		newlyLocked bool
	)
	a, err := e.update(ctx, "login",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByIdentifier(ctx, identifier)
		},
		func(ctx context.Context, a *account.Account, now time.Time) (bool, error) {
			verdict, blocked, newlyLocked = nil, false, false

			if lockout.IsLocked(a, now) {
				until := *a.LockedUntil
				e.events.Emit(ctx, audit.LoginBlockedLocked, a.ID, "", map[string]string{
					"locked_until": until.UTC().Format(time.RFC3339),
				})
				verdict = &LockedError{Until: until}
				blocked = true
				return false, nil
			}

			ok, err := e.hasher.Verify(plaintext, a.PasswordHash)
			if err != nil {
				return false, e.corrupt(ctx, a, err)
			}
			if !ok {
				outcome := e.lockout.RecordFailure(ctx, a, now)
				if outcome.Locked {
					verdict = &LockedError{Until: outcome.LockedUntil}
					newlyLocked = true
				} else {
					verdict = ErrInvalidCredentials
				}
				return true, nil
			}

			if !a.IsActive {
				e.events.Emit(ctx, audit.LoginBlockedInactive, a.ID, "", nil)
				verdict = ErrAccountInactive
				return false, nil
			}

			e.lockout.RecordSuccess(ctx, a, now)
			if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(a.PasswordHash) {
				if upgraded, err := e.hasher.Hash(plaintext); err == nil {
					a.PasswordHash = upgraded
					e.metricInc(MetricPasswordRehash)
				} else {
					e.logger.WarnContext(ctx, "password rehash skipped", slog.String("account_id", a.ID), slog.Any("error", err))
				}
			}
			return true, nil
		})

	if errors.Is(err, account.ErrNotFound) {
		_, _ = e.hasher.Verify(plaintext, e.dummyHash)
		e.metricInc(MetricLoginFailure)
		e.logger.DebugContext(ctx, "login for unknown identifier")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	switch {
	case verdict == nil:
	case errors.Is(verdict, ErrAccountInactive):
		e.metricInc(MetricLoginBlockedInactive)
		return nil, verdict
	default:
		e.metricInc(MetricLoginFailure)
		if blocked {
			e.metricInc(MetricLoginBlockedLocked)
		}
		if newlyLocked {
			e.metricInc(MetricAccountLocked)
		}
		return nil, verdict
	}

	now := e.now()
	result := &LoginResult{Account: a.Public()}
	result.AccessToken, err = e.issuer.IssueAccessToken(a.ID, now)
	if err != nil {
		return nil, e.backend(ctx, "login", err)
	}
	if rememberMe {
		refresh, err := e.issuer.IssueRefreshToken(a.ID, now)
		if err != nil {
			return nil, e.backend(ctx, "login", err)
		}
		result.RefreshToken = &refresh
	}

	e.metricInc(MetricLoginSuccess)
	e.logger.DebugContext(ctx, "login succeeded",
		slog.String("account_id", a.ID),
		slog.Bool("remember_me", rememberMe))
	return result, nil
}

/*
====================================
SESSIONS
====================================
*/

// Refresh mints a new access token from a refresh token. The refresh token
// is not rotated. A missing or inactive account returns
// ErrAccountUnavailable; an unusable token returns ErrInvalidSession.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (session.Token, error) {
	if err := e.ready(); err != nil {
		return session.Token{}, err
	}

	access, a, err := e.issuer.Refresh(ctx, refreshToken, e.now())
	switch {
	case err == nil:
		e.metricInc(MetricRefreshSuccess)
		e.logger.DebugContext(ctx, "access token refreshed", slog.String("account_id", a.ID))
		return access, nil
	case errors.Is(err, session.ErrInvalidSession):
		e.metricInc(MetricRefreshFailure)
		return session.Token{}, ErrInvalidSession
	case errors.Is(err, session.ErrAccountUnavailable):
		e.metricInc(MetricRefreshFailure)
		return session.Token{}, ErrAccountUnavailable
	default:
		e.metricInc(MetricRefreshFailure)
		return session.Token{}, e.backend(ctx, "refresh", err)
	}
}

// Authenticate resolves the account behind an access token. The account
// must still exist and be active.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*account.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	id, err := e.issuer.ValidateAccess(accessToken, e.now())
	if err != nil {
		return nil, ErrInvalidSession
	}

	a, err := e.accounts.FindByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrAccountUnavailable
	}
	if err != nil {
		return nil, e.backend(ctx, "authenticate", err)
	}
	if !a.IsActive {
		return nil, ErrAccountUnavailable
	}
	return a, nil
}

// Logout records a LOGOUT event when accessToken identifies an account.
// Tokens are stateless, so clearing the client's cookies is what ends the
// session; Logout never fails because of the token.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if accessToken == "" {
		return nil
	}
	id, err := e.issuer.ValidateAccess(accessToken, e.now())
	if err != nil {
		return nil
	}
	e.events.Emit(ctx, audit.Logout, id, "", nil)
	e.metricInc(MetricLogout)
	return nil
}

/*
====================================
ADMINISTRATION
====================================
*/

// UnlockAccount clears the lockout state of accountID without touching
// LastLoginAt.
func (e *Engine) UnlockAccount(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	_, err := e.update(ctx, "unlock",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByID(ctx, accountID)
		},
		func(ctx context.Context, a *account.Account, _ time.Time) (bool, error) {
			e.lockout.ManualUnlock(ctx, a)
			return true, nil
		})
	if errors.Is(err, account.ErrNotFound) {
		return ErrAccountUnavailable
	}
	if err != nil {
		return err
	}
	e.metricInc(MetricAccountUnlocked)
	return nil
}

/*
====================================
READ-MODIFY-WRITE
====================================
*/

// mutation applies one operation to a freshly loaded account. It reports
// whether a must be saved and the operation's outcome. A saved attempt
// returns its outcome only after the save succeeded, so an error outcome can
// still persist state (a recorded failure, a cleared expired token).
type mutation func(ctx context.Context, a *account.Account, now time.Time) (bool, error)

// update loads an account, applies fn and saves the result, retrying the
// whole sequence when the save loses a version race. Events emitted by fn
// are published only once the attempt is final: after a successful save, or
// right away when fn asks for no save. account.ErrNotFound from load is
// returned as is; a Save rejected as a duplicate becomes a ValidationError;
// every other repository failure becomes ErrUnavailable.
func (e *Engine) update(ctx context.Context, op string, load func(context.Context) (*account.Account, error), fn mutation) (*account.Account, error) {
	for attempt := 0; ; attempt++ {
		a, err := load(ctx)
		if errors.Is(err, account.ErrNotFound) {
			return nil, account.ErrNotFound
		}
		if err != nil {
			return nil, e.backend(ctx, op, err)
		}

		actx, pending := audit.Defer(ctx)
		save, outcome := fn(actx, a, e.now())
		if !save {
			e.events.Flush(ctx, pending)
			return a, outcome
		}

		err = e.accounts.Save(ctx, a)
		if err == nil {
			e.events.Flush(ctx, pending)
			return a, outcome
		}
		pending.Discard()

		if errors.Is(err, account.ErrDuplicate) {
			return nil, &ValidationError{Problems: []string{"Username or email already taken"}}
		}
		if !errors.Is(err, account.ErrConflict) {
			return nil, e.backend(ctx, op, err)
		}
		e.metricInc(MetricConcurrentRetry)
		if attempt >= e.config.Concurrency.MaxRetries {
			e.logger.WarnContext(ctx, "account update gave up after version conflicts",
				slog.String("operation", op),
				slog.String("account_id", a.ID),
				slog.Int("attempts", attempt+1))
			return nil, ErrConcurrentUpdate
		}
		e.logger.DebugContext(ctx, "account version conflict, retrying",
			slog.String("operation", op),
			slog.String("account_id", a.ID),
			slog.Int("attempt", attempt+1))
	}
}

// backend logs an infrastructure failure with its cause and returns the
// bare ErrUnavailable.
func (e *Engine) backend(ctx context.Context, op string, err error) error {
	e.metricInc(MetricBackendFailure)
	e.logger.ErrorContext(ctx, "backend failure",
		slog.String("operation", op),
		slog.Any("error", err))
	return ErrUnavailable
}

// corrupt logs an unparseable stored hash as an operator defect.
func (e *Engine) corrupt(ctx context.Context, a *account.Account, err error) error {
	e.logger.ErrorContext(ctx, "stored password hash is corrupt",
		slog.String("account_id", a.ID),
		slog.Any("error", err))
	return ErrCorruptCredential
}
