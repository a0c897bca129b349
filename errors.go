package accountguard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/accountguard/internal/rate"
	"github.com/MrEthical07/accountguard/session"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for an unknown identifier and for a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCurrentPasswordIncorrect is returned by ChangePassword when the
	// current password does not verify.
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	// ErrAccountLocked is wrapped by *LockedError.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountInactive is returned when a deactivated account authenticates
	// with the right password.
	ErrAccountInactive = errors.New("account is deactivated")
	// ErrInvalidOrExpiredToken is returned for a reset token that does not
	// match, has expired or was never issued.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidSession is returned for unusable session tokens. It matches
	// ErrInvalidOrExpiredToken under errors.Is.
	ErrInvalidSession = fmt.Errorf("invalid session: %w", ErrInvalidOrExpiredToken)
	// ErrAccountUnavailable is returned by Refresh and Authenticate when the
	// token's account is missing or inactive.
	ErrAccountUnavailable = session.ErrAccountUnavailable
	// ErrCorruptCredential means the stored password hash cannot be parsed.
	// It is an operator defect, not a client error.
	ErrCorruptCredential = errors.New("stored credential is corrupt")
	// ErrRateLimited is returned when a caller exceeded a request budget.
	ErrRateLimited = rate.ErrRateLimited
	// ErrUnavailable is returned when the repository or another backend
	// failed. The cause is logged, not returned.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrConcurrentUpdate is returned when an account kept changing under an
	// operation past the configured retries.
	ErrConcurrentUpdate = errors.New("account changed concurrently")
	// ErrEngineNotReady is returned by methods on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError reports rejected input for a single field.
type ValidationError struct {
	Field    string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + strings.Join(e.Problems, "; ")
	}
	return "validation failed: " + e.Field + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// LockedError carries the end of the lockout window.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return ErrAccountLocked.Error()
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// RetryAfter returns how long until the lock lifts, measured from now.
func (e *LockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
