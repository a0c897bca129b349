package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/jwt"
)

var t0 = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

type finderFunc func(ctx context.Context, id string) (*account.Account, error)

func (f finderFunc) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return f(ctx, id)
}

func newTestIssuer(t *testing.T, finder AccountFinder) *Issuer {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		PrivateKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "accountguard-test",
	})
	require.NoError(t, err)
	return NewIssuer(m, finder)
}

func TestIssueAndValidateAccess(t *testing.T) {
	iss := newTestIssuer(t, nil)

	tok, err := iss.IssueAccessToken("acct-1", t0)
	require.NoError(t, err)
	assert.Equal(t, jwt.KindAccess, tok.Kind)
	assert.Equal(t, t0.Add(15*time.Minute), tok.ExpiresAt)

	id, err := iss.ValidateAccess(tok.Value, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)

	_, err = iss.ValidateAccess(tok.Value, t0.Add(16*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestValidateAccess_RejectsRefreshToken(t *testing.T) {
	iss := newTestIssuer(t, nil)

	tok, err := iss.IssueRefreshToken("acct-1", t0)
	require.NoError(t, err)

	_, err = iss.ValidateAccess(tok.Value, t0)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefresh(t *testing.T) {
	active := &account.Account{ID: "acct-1", IsActive: true}
	inactive := &account.Account{ID: "acct-2", IsActive: false}
	backendDown := errors.New("connection refused")

	iss := newTestIssuer(t, finderFunc(func(_ context.Context, id string) (*account.Account, error) {
		switch id {
		case active.ID:
			return active, nil
		case inactive.ID:
			return inactive, nil
		case "acct-down":
			return nil, backendDown
		default:
			return nil, account.ErrNotFound
		}
	}))

	refreshFor := func(id string) string {
		tok, err := iss.IssueRefreshToken(id, t0)
		require.NoError(t, err)
		return tok.Value
	}

	t.Run("active account gets a new access token", func(t *testing.T) {
		access, a, err := iss.Refresh(context.Background(), refreshFor(active.ID), t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, active.ID, a.ID)

		id, err := iss.ValidateAccess(access.Value, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, active.ID, id)
	})

	t.Run("inactive account", func(t *testing.T) {
		_, _, err := iss.Refresh(context.Background(), refreshFor(inactive.ID), t0)
		assert.ErrorIs(t, err, ErrAccountUnavailable)
	})

	t.Run("deleted account", func(t *testing.T) {
		_, _, err := iss.Refresh(context.Background(), refreshFor("acct-gone"), t0)
		assert.ErrorIs(t, err, ErrAccountUnavailable)
	})

	t.Run("repository failure is not masked", func(t *testing.T) {
		_, _, err := iss.Refresh(context.Background(), refreshFor("acct-down"), t0)
		assert.ErrorIs(t, err, backendDown)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		access, err := iss.IssueAccessToken(active.ID, t0)
		require.NoError(t, err)
		_, _, err = iss.Refresh(context.Background(), access.Value, t0)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		_, _, err := iss.Refresh(context.Background(), refreshFor(active.ID), t0.Add(31*24*time.Hour))
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}
