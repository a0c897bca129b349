package accountguard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/password"
)

// ChangePassword replaces the password of an authenticated account after
// checking current. The new password must satisfy the strength policy; it is
// checked only once current is known to be correct.
func (e *Engine) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if current == "" || next == "" {
		return &ValidationError{Field: "new_password", Problems: []string{"Current password and new password are required"}}
	}
	_, err := e.update(ctx, "change_password",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByID(ctx, accountID)
		},
		func(ctx context.Context, a *account.Account, _ time.Time) (bool, error) {
			if !a.IsActive {
				return false, ErrAccountUnavailable
			}
			ok, err := e.hasher.Verify(current, a.PasswordHash)
			if err != nil {
				return false, e.corrupt(ctx, a, err)
			}
			if !ok {
				return false, ErrCurrentPasswordIncorrect
			}
			if err := e.checkPolicy("new_password", next); err != nil {
				return false, err
			}
			hash, err := e.hasher.Hash(next)
			if err != nil {
				return false, e.hashFailure(ctx, "change_password", err)
			}
			a.PasswordHash = hash
			return true, nil
		})
	if errors.Is(err, account.ErrNotFound) {
		err = ErrAccountUnavailable
	}
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.logger.InfoContext(ctx, "password changed", slog.String("account_id", accountID))
	return nil
}

// RequestPasswordReset issues a reset token for the active account with
// this email and hands it to the Mailer. The result is nil whether or not
// such an account exists; only malformed input and backend failures are
// reported.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	started := time.Now()
	defer func() { e.metrics.Observe(MetricPasswordResetLatency, time.Since(started)) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Problems: []string{"Email is required"}}
	}
	e.metricInc(MetricPasswordResetRequest)

	var token string
	a, err := e.update(ctx, "request_password_reset",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByEmail(ctx, email)
		},
		func(ctx context.Context, a *account.Account, now time.Time) (bool, error) {
			token = ""
			if !a.IsActive {
				return false, nil
			}
			issued, err := e.resets.Issue(ctx, a, now)
			if err != nil {
				return false, e.backend(ctx, "request_password_reset", err)
			}
			token = issued
			return true, nil
		})
	if errors.Is(err, account.ErrNotFound) {
		e.logger.DebugContext(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if token == "" {
		e.logger.DebugContext(ctx, "password reset requested for inactive account", slog.String("account_id", a.ID))
		return nil
	}

	if err := e.mailer.SendPasswordReset(ctx, a.Email, token); err != nil {
		e.metricInc(MetricPasswordResetEmailFailure)
		e.logger.WarnContext(ctx, "password reset email not sent",
			slog.String("account_id", a.ID),
			slog.Any("error", err))
		return nil
	}
	e.events.Emit(ctx, audit.PasswordResetEmailSent, a.ID, "", nil)
	return nil
}

// VerifyPasswordReset checks a reset token without consuming it. An expired
// token is cleared as a side effect.
func (e *Engine) VerifyPasswordReset(ctx context.Context, email, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(email) == "" || token == "" {
		return &ValidationError{Field: "token", Problems: []string{"Email and token are required"}}
	}

	_, err := e.update(ctx, "verify_password_reset",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByEmail(ctx, strings.TrimSpace(email))
		},
		func(ctx context.Context, a *account.Account, now time.Time) (bool, error) {
			return e.verifyResetToken(ctx, a, token, now)
		})
	if errors.Is(err, account.ErrNotFound) {
		return ErrInvalidOrExpiredToken
	}
	return err
}

// ResetPassword consumes a reset token and sets a new password. A
// successful reset also lifts any lockout.
func (e *Engine) ResetPassword(ctx context.Context, email, token, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	started := time.Now()
	defer func() { e.metrics.Observe(MetricPasswordResetLatency, time.Since(started)) }()

	email = strings.TrimSpace(email)
	if email == "" || token == "" || next == "" {
		return &ValidationError{Field: "token", Problems: []string{"Token and new password are required"}}
	}
	if err := e.checkPolicy("new_password", next); err != nil {
		return err
	}

	_, err := e.update(ctx, "reset_password",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByEmail(ctx, email)
		},
		func(ctx context.Context, a *account.Account, now time.Time) (bool, error) {
			if !a.IsActive {
				return false, ErrInvalidOrExpiredToken
			}
			if save, err := e.verifyResetToken(ctx, a, token, now); err != nil {
				return save, err
			}
			if err := e.resets.Consume(ctx, a, next, now); err != nil {
				return false, e.hashFailure(ctx, "reset_password", err)
			}
			return true, nil
		})
	switch {
	case err == nil:
		e.metricInc(MetricPasswordResetSuccess)
		e.logger.InfoContext(ctx, "password reset completed")
		return nil
	case errors.Is(err, account.ErrNotFound), errors.Is(err, ErrInvalidOrExpiredToken):
		e.metricInc(MetricPasswordResetInvalidToken)
		return ErrInvalidOrExpiredToken
	default:
		return err
	}
}

// verifyResetToken runs reset verification inside a mutation. An invalid
// token emits PASSWORD_RESET_INVALID_TOKEN; an expired one was cleared by
// verification and asks to be saved.
func (e *Engine) verifyResetToken(ctx context.Context, a *account.Account, token string, now time.Time) (bool, error) {
	had := a.HasResetToken()
	if e.resets.Verify(ctx, a, token, now) {
		return false, nil
	}
	e.events.Emit(ctx, audit.PasswordResetInvalidToken, a.ID, "", nil)
	return had && !a.HasResetToken(), ErrInvalidOrExpiredToken
}

func (e *Engine) checkPolicy(field, plaintext string) error {
	err := e.policy.Check(plaintext)
	if err == nil {
		return nil
	}
	var pe *password.PolicyError
	if errors.As(err, &pe) {
		return &ValidationError{Field: field, Problems: pe.Problems}
	}
	return &ValidationError{Field: field, Problems: []string{err.Error()}}
}

// hashFailure reports plaintext the hasher refuses as a ValidationError and
// anything else as a backend failure.
func (e *Engine) hashFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
		return &ValidationError{Field: "new_password", Problems: []string{err.Error()}}
	}
	return e.backend(ctx, op, err)
}
