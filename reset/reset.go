package reset

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/internal"
	"github.com/MrEthical07/accountguard/lockout"
	"github.com/MrEthical07/accountguard/password"
)

// DefaultTTL is how long an issued reset token stays valid.
const DefaultTTL = time.Hour

// ErrNoPendingReset is returned by Consume when the account has no live
// reset token.
var ErrNoPendingReset = errors.New("no pending password reset")

// Manager issues, verifies and consumes single-use password reset tokens
// stored on the account row.
type Manager struct {
	hasher password.Hasher
	events *audit.Emitter
	ttl    time.Duration
}

// New returns a Manager. A non-positive ttl selects DefaultTTL.
func New(hasher password.Hasher, events *audit.Emitter, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{hasher: hasher, events: events, ttl: ttl}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue generates a 256-bit URL-safe token, stores its digest with an expiry
// of now+TTL and returns the token. Any earlier token stops verifying.
func (m *Manager) Issue(ctx context.Context, a *account.Account, now time.Time) (string, error) {
	token, err := internal.NewToken(internal.ResetTokenBytes)
	if err != nil {
		return "", err
	}

	expiresAt := now.Add(m.ttl)
	a.SetResetToken(internal.TokenDigest(token), expiresAt)

	m.events.Emit(ctx, audit.PasswordResetRequested, a.ID, "", map[string]string{
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
	return token, nil
}

// Verify reports whether candidate matches the stored token. An expired
// token is cleared from the account as a side effect. A match does not
// consume the token.
func (m *Manager) Verify(_ context.Context, a *account.Account, candidate string, now time.Time) bool {
	if !a.HasResetToken() {
		return false
	}
	if !now.Before(*a.PasswordResetExpiresAt) {
		a.ClearResetToken()
		return false
	}
	return internal.DigestsEqual(internal.TokenDigest(candidate), *a.PasswordResetToken)
}

// Consume applies newPassword after a successful Verify: it stores the new
// hash, clears the token, lifts any lockout and emits
// PASSWORD_RESET_COMPLETED. The account is left untouched on error.
func (m *Manager) Consume(ctx context.Context, a *account.Account, newPassword string, now time.Time) error {
	if !a.HasResetToken() || !now.Before(*a.PasswordResetExpiresAt) {
		return ErrNoPendingReset
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	a.PasswordHash = hash
	a.ClearResetToken()
	lockout.Reset(a)

	m.events.Emit(ctx, audit.PasswordResetCompleted, a.ID, "", nil)
	return nil
}
