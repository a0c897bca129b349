package accountguard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
)

const (
	maxUsernameLength = 80
	maxEmailLength    = 120
)

// ProfileUpdate lists the profile fields to change. A nil field is left as
// is.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// UpdateProfile changes the username and email of an active account. A
// value already held by another account is rejected with a ValidationError.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, changes ProfileUpdate) (account.Public, error) {
	if err := e.ready(); err != nil {
		return account.Public{}, err
	}
	if changes.Username == nil && changes.Email == nil {
		return account.Public{}, &ValidationError{Problems: []string{"No data provided"}}
	}

	var username, email string
	if changes.Username != nil {
		username = strings.TrimSpace(*changes.Username)
		if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
			return account.Public{}, &ValidationError{Field: "username", Problems: []string{"Username must be 1 to 80 characters"}}
		}
		taken, err := e.claimedByOther(ctx, e.accounts.FindByIdentifier, username, accountID)
		if err != nil {
			return account.Public{}, err
		}
		if taken {
			return account.Public{}, &ValidationError{Field: "username", Problems: []string{"Username already taken"}}
		}
	}
	if changes.Email != nil {
		email = strings.TrimSpace(*changes.Email)
		if email == "" || utf8.RuneCountInString(email) > maxEmailLength {
			return account.Public{}, &ValidationError{Field: "email", Problems: []string{"Email must be 1 to 120 characters"}}
		}
		taken, err := e.claimedByOther(ctx, e.accounts.FindByEmail, email, accountID)
		if err != nil {
			return account.Public{}, err
		}
		if taken {
			return account.Public{}, &ValidationError{Field: "email", Problems: []string{"Email already taken"}}
		}
	}

	var changed []string
	a, err := e.update(ctx, "update_profile",
		func(ctx context.Context) (*account.Account, error) {
			return e.accounts.FindByID(ctx, accountID)
		},
		func(ctx context.Context, a *account.Account, _ time.Time) (bool, error) {
			changed = changed[:0]
			if !a.IsActive {
				return false, ErrAccountUnavailable
			}
			if username != "" && username != a.Username {
				a.Username = username
				changed = append(changed, "username")
			}
			if email != "" && email != a.Email {
				a.Email = email
				changed = append(changed, "email")
			}
			if len(changed) == 0 {
				return false, nil
			}
			e.events.Emit(ctx, audit.ProfileUpdated, a.ID, "", map[string]string{
				"fields": strings.Join(changed, ","),
			})
			return true, nil
		})
	if errors.Is(err, account.ErrNotFound) {
		return account.Public{}, ErrAccountUnavailable
	}
	if err != nil {
		return account.Public{}, err
	}

	if len(changed) > 0 {
		e.logger.InfoContext(ctx, "profile updated",
			slog.String("account_id", a.ID),
			slog.String("fields", strings.Join(changed, ",")))
	}
	return a.Public(), nil
}

// claimedByOther reports whether find resolves value to an account other
// than accountID.
func (e *Engine) claimedByOther(ctx context.Context, find func(context.Context, string) (*account.Account, error), value, accountID string) (bool, error) {
	other, err := find(ctx, value)
	if errors.Is(err, account.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, e.backend(ctx, "update_profile", err)
	}
	return other.ID != accountID, nil
}
