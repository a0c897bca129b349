package lockout

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
)

// Policy holds the progressive lockout parameters.
type Policy struct {
	// Threshold is the failure count at which the first lock applies.
	Threshold int `yaml:"threshold"`
	// BaseDuration is the lock length at Threshold; it doubles per further
	// failure.
	BaseDuration time.Duration `yaml:"base_duration"`
	// MaxDuration caps the lock length.
	MaxDuration time.Duration `yaml:"max_duration"`
}

// DefaultPolicy locks for 5 minutes at the third failure, doubling up to a
// 240 minute cap.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:    3,
		BaseDuration: 5 * time.Minute,
		MaxDuration:  240 * time.Minute,
	}
}

// Validate rejects policies that would lock forever or never.
func (p Policy) Validate() error {
	if p.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if p.BaseDuration <= 0 {
		return errors.New("lockout base duration must be > 0")
	}
	if p.MaxDuration < p.BaseDuration {
		return errors.New("lockout max duration must be >= base duration")
	}
	return nil
}

// Duration returns the lock length for a failure count, or 0 below the
// threshold.
func (p Policy) Duration(attempts int) time.Duration {
	if attempts < p.Threshold {
		return 0
	}
	d := p.BaseDuration
	for i := p.Threshold; i < attempts; i++ {
		if d >= p.MaxDuration {
			return p.MaxDuration
		}
		d *= 2
	}
	if d > p.MaxDuration {
		return p.MaxDuration
	}
	return d
}

// Outcome describes the state after RecordFailure.
type Outcome struct {
	Attempts    int
	Locked      bool
	LockedUntil time.Time
	Duration    time.Duration
}

// Machine applies lockout transitions to an account held in memory. It never
// persists; the caller saves the account inside its own read-modify-write.
type Machine struct {
	policy Policy
	events *audit.Emitter
	now    func() time.Time
}

// New returns a Machine. The clock is only used to stamp ManualUnlock.
func New(policy Policy, events *audit.Emitter, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{policy: policy, events: events, now: now}
}

func (m *Machine) Policy() Policy {
	return m.policy
}

// IsLocked reports whether a is inside a lock window at now. Expired locks
// are discovered here lazily; nothing sweeps them.
func IsLocked(a *account.Account, now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

func (m *Machine) IsLocked(a *account.Account, now time.Time) bool {
	return IsLocked(a, now)
}

// RecordFailure counts a failed password check. Reaching the threshold locks
// the account and emits ACCOUNT_LOCKED; otherwise LOGIN_FAILED is emitted.
func (m *Machine) RecordFailure(ctx context.Context, a *account.Account, now time.Time) Outcome {
	a.FailedLoginAttempts++
	failedAt := now
	a.LastFailedLoginAt = &failedAt

	out := Outcome{Attempts: a.FailedLoginAttempts}

	if a.FailedLoginAttempts < m.policy.Threshold {
		m.events.Emit(ctx, audit.LoginFailed, a.ID, "invalid password", map[string]string{
			"attempts": strconv.Itoa(a.FailedLoginAttempts),
		})
		return out
	}

	d := m.policy.Duration(a.FailedLoginAttempts)
	until := now.Add(d)
	a.LockedUntil = &until

	out.Locked = true
	out.LockedUntil = until
	out.Duration = d

	m.events.Emit(ctx, audit.AccountLocked, a.ID,
		"account locked after "+strconv.Itoa(a.FailedLoginAttempts)+" failed attempts",
		map[string]string{
			"attempts":     strconv.Itoa(a.FailedLoginAttempts),
			"lock_minutes": strconv.Itoa(int(d / time.Minute)),
			"locked_until": until.UTC().Format(time.RFC3339),
		})
	return out
}

// RecordSuccess clears the failure state and stamps LastLoginAt.
func (m *Machine) RecordSuccess(ctx context.Context, a *account.Account, now time.Time) {
	clearFailures(a)
	loginAt := now
	a.LastLoginAt = &loginAt

	m.events.Emit(ctx, audit.LoginSuccess, a.ID, "", nil)
}

// ManualUnlock clears the failure state outside the login flow.
func (m *Machine) ManualUnlock(ctx context.Context, a *account.Account) {
	previous := a.FailedLoginAttempts
	clearFailures(a)

	m.events.Emit(ctx, audit.AccountUnlocked, a.ID, "manual unlock", map[string]string{
		"previous_attempts": strconv.Itoa(previous),
		"unlocked_at":       m.now().UTC().Format(time.RFC3339),
	})
}

// Reset clears the failure state without emitting. Password reset uses it.
func Reset(a *account.Account) {
	clearFailures(a)
}

func clearFailures(a *account.Account) {
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	a.LastFailedLoginAt = nil
}
