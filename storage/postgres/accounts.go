package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/MrEthical07/accountguard/account"
)

const uniqueViolation = "23505"

const accountColumns = `id, username, email, password_hash, is_active,
       failed_login_attempts, locked_until, last_failed_login_at, last_login_at,
       password_reset_token, password_reset_expires_at,
       created_at, updated_at, version`

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
	now  func() time.Time
}

// NewAccountRepository creates a repository over pool.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool, now: time.Now}
}

// Create inserts a new account with version 1. An empty ID is filled with a
// UUID.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
	`,
		a.ID,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.IsActive,
		a.FailedLoginAttempts,
		a.LockedUntil,
		a.LastFailedLoginAt,
		a.LastLoginAt,
		a.PasswordResetToken,
		a.PasswordResetExpiresAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("username", a.Username).
				Wrap(account.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", a.Username).
			Wrap(err)
	}
	a.Version = 1
	return nil
}

// FindByIdentifier matches username or email, case-insensitively.
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		LIMIT 1
	`, identifier)
	return r.find(row, "identifier", identifier)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)
	return r.find(row, "email", email)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return r.find(row, "id", id)
}

// Save writes a when its version still matches the stored row and bumps the
// version. A stale version returns account.ErrConflict.
func (r *AccountRepository) Save(ctx context.Context, a *account.Account) error {
	updatedAt := r.now().UTC()

	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			username = $3,
			email = $4,
			password_hash = $5,
			is_active = $6,
			failed_login_attempts = $7,
			locked_until = $8,
			last_failed_login_at = $9,
			last_login_at = $10,
			password_reset_token = $11,
			password_reset_expires_at = $12,
			updated_at = $13,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		a.ID,
		a.Version,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.IsActive,
		a.FailedLoginAttempts,
		a.LockedUntil,
		a.LastFailedLoginAt,
		a.LastLoginAt,
		a.PasswordResetToken,
		a.PasswordResetExpiresAt,
		updatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("id", a.ID).
				Wrap(account.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_SAVE_FAILED").
			With("operation", "update account").
			With("id", a.ID).
			Wrap(err)
	}

	if result.RowsAffected() == 0 {
		var version int64
		err := r.pool.QueryRow(ctx, `SELECT version FROM accounts WHERE id = $1`, a.ID).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("id", a.ID).
				Wrap(account.ErrNotFound)
		}
		if err != nil {
			return oops.Code("ACCOUNT_SAVE_FAILED").
				With("operation", "check account version").
				With("id", a.ID).
				Wrap(err)
		}
		return oops.Code("ACCOUNT_VERSION_CONFLICT").
			With("id", a.ID).
			With("expected_version", a.Version).
			With("stored_version", version).
			Wrap(account.ErrConflict)
	}

	a.Version++
	a.UpdatedAt = updatedAt
	return nil
}

func (r *AccountRepository) find(row pgx.Row, key, value string) (*account.Account, error) {
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With(key, value).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by "+key).
			With(key, value).
			Wrap(err)
	}
	return a, nil
}

// scanAccount scans one row selected with accountColumns. pgx.ErrNoRows is
// returned unwrapped for callers to handle.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var a account.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.IsActive,
		&a.FailedLoginAttempts,
		&a.LockedUntil,
		&a.LastFailedLoginAt,
		&a.LastLoginAt,
		&a.PasswordResetToken,
		&a.PasswordResetExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	return &a, nil
}
