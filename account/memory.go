package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. It enforces the same
// version check as the Postgres implementation.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	now      func() time.Time
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*Account),
		now:      time.Now,
	}
}

// Create provisions a new account. An empty ID is filled with a UUID.
func (r *MemoryRepository) Create(ctx context.Context, a *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Username, a.Username) || strings.EqualFold(existing.Email, a.Email) {
			return ErrDuplicate
		}
	}

	stored := a.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.Version = 1
	r.accounts[stored.ID] = stored

	a.ID = stored.ID
	a.CreatedAt = stored.CreatedAt
	a.UpdatedAt = stored.UpdatedAt
	a.Version = stored.Version
	return nil
}

func (r *MemoryRepository) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return r.find(ctx, func(a *Account) bool {
		return strings.EqualFold(a.Username, identifier) || strings.EqualFold(a.Email, identifier)
	})
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.find(ctx, func(a *Account) bool {
		return strings.EqualFold(a.Email, email)
	})
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// Save replaces the stored row when a.Version matches and bumps the version.
// A username or email held by another account yields ErrDuplicate.
func (r *MemoryRepository) Save(ctx context.Context, a *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != a.Version {
		return ErrConflict
	}
	for id, existing := range r.accounts {
		if id != a.ID && (strings.EqualFold(existing.Username, a.Username) || strings.EqualFold(existing.Email, a.Email)) {
			return ErrDuplicate
		}
	}

	stored := a.Clone()
	stored.Version = current.Version + 1
	stored.UpdatedAt = r.now().UTC()
	r.accounts[a.ID] = stored

	a.Version = stored.Version
	a.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) find(ctx context.Context, match func(*Account) bool) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, ErrNotFound
}
