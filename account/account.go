package account

import "time"

// Account is the single persisted record every security component operates
// on. Components mutate it in memory through the methods below; only a
// Repository persists it.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastFailedLoginAt   *time.Time
	LastLoginAt         *time.Time

	// PasswordResetToken holds the digest of the live reset token, never the
	// token handed to the user.
	PasswordResetToken     *string
	PasswordResetExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is bumped by every successful Save. Repositories reject a Save
	// whose Version does not match the stored row with ErrConflict.
	Version int64
}

// SetResetToken stores a reset token digest together with its expiry.
func (a *Account) SetResetToken(digest string, expiresAt time.Time) {
	a.PasswordResetToken = &digest
	a.PasswordResetExpiresAt = &expiresAt
}

// ClearResetToken removes the reset token and its expiry.
func (a *Account) ClearResetToken() {
	a.PasswordResetToken = nil
	a.PasswordResetExpiresAt = nil
}

// HasResetToken reports whether a reset token is stored.
func (a *Account) HasResetToken() bool {
	return a.PasswordResetToken != nil && a.PasswordResetExpiresAt != nil
}

// Clone returns a deep copy so callers and repositories never share pointers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.LockedUntil = cloneTime(a.LockedUntil)
	out.LastFailedLoginAt = cloneTime(a.LastFailedLoginAt)
	out.LastLoginAt = cloneTime(a.LastLoginAt)
	out.PasswordResetExpiresAt = cloneTime(a.PasswordResetExpiresAt)
	if a.PasswordResetToken != nil {
		token := *a.PasswordResetToken
		out.PasswordResetToken = &token
	}
	return &out
}

// Public is the outward view of an account. It never carries credential
// material.
type Public struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Public returns the outward view of a.
func (a *Account) Public() Public {
	return Public{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		IsActive:    a.IsActive,
		LastLoginAt: cloneTime(a.LastLoginAt),
		CreatedAt:   a.CreatedAt,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
