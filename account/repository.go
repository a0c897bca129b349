package account

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by lookups that match no account.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned by Save when the stored row changed since the
	// account was read.
	ErrConflict = errors.New("account version conflict")
	// ErrDuplicate is returned by Create and Save when the username or email
	// belongs to another account.
	ErrDuplicate = errors.New("account already exists")
)

// Repository is the persistence contract consumed by the engine. Each call
// runs under whatever transaction boundary the caller establishes; Save is
// all-or-nothing for the row.
type Repository interface {
	// FindByIdentifier matches username or email, case-insensitively.
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Save(ctx context.Context, a *Account) error
}
