package accountguard

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
)

func ptr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	a := h.createAccount(t, "alice", true)

	public, err := h.engine.UpdateProfile(context.Background(), a.ID, ProfileUpdate{
		Username: ptr(" alicia "),
		Email:    ptr("alicia@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alicia", public.Username)
	assert.Equal(t, "alicia@example.com", public.Email)

	stored := h.reload(t, a.ID)
	assert.Equal(t, "alicia", stored.Username)
	assert.Equal(t, a.Version+1, stored.Version)

	events := h.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ProfileUpdated, events[0].Type)
	assert.Equal(t, "username,email", events[0].Metadata["fields"])

	_, err = h.engine.Login(context.Background(), "alicia", testPassword, false)
	assert.NoError(t, err)
}

func TestUpdateProfile_UnchangedValuesSkipSave(t *testing.T) {
	h := newHarness(t)
	a := h.createAccount(t, "alice", true)

	_, err := h.engine.UpdateProfile(context.Background(), a.ID, ProfileUpdate{Email: ptr("alice@example.com")})
	require.NoError(t, err)
	assert.Equal(t, a.Version, h.reload(t, a.ID).Version)
	assert.Empty(t, h.sink.Events())
}

func TestUpdateProfile_Rejections(t *testing.T) {
	h := newHarness(t)
	a := h.createAccount(t, "alice", true)
	h.createAccount(t, "bob", true)

	tests := []struct {
		name    string
		changes ProfileUpdate
		field   string
		problem string
	}{
		{name: "nothing to change", changes: ProfileUpdate{}, problem: "No data provided"},
		{name: "blank username", changes: ProfileUpdate{Username: ptr("  ")}, field: "username", problem: "Username must be 1 to 80 characters"},
		{name: "long email", changes: ProfileUpdate{Email: ptr(strings.Repeat("e", 121))}, field: "email", problem: "Email must be 1 to 120 characters"},
		{name: "username taken", changes: ProfileUpdate{Username: ptr("BOB")}, field: "username", problem: "Username already taken"},
		{name: "email taken", changes: ProfileUpdate{Email: ptr("bob@example.com")}, field: "email", problem: "Email already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.UpdateProfile(context.Background(), a.ID, tt.changes)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, []string{tt.problem}, ve.Problems)
		})
	}
	assert.Equal(t, a.Version, h.reload(t, a.ID).Version)
}

func TestUpdateProfile_DuplicateOnSaveIsValidationError(t *testing.T) {
	h := newHarness(t, withRepository(func(mem *account.MemoryRepository) account.Repository {
		return &blindRepository{MemoryRepository: mem}
	}))
	a := h.createAccount(t, "alice", true)
	h.createAccount(t, "bob", true)

	_, err := h.engine.UpdateProfile(context.Background(), a.ID, ProfileUpdate{Email: ptr("bob@example.com")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Username or email already taken"}, ve.Problems)
	assert.Zero(t, h.engine.MetricsSnapshot().Counters[MetricBackendFailure])
}

func TestUpdateProfile_MissingOrInactiveAccount(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.UpdateProfile(context.Background(), "no-such-id", ProfileUpdate{Username: ptr("x")})
	assert.ErrorIs(t, err, ErrAccountUnavailable)

	inactive := h.createAccount(t, "bob", false)
	_, err = h.engine.UpdateProfile(context.Background(), inactive.ID, ProfileUpdate{Username: ptr("robert")})
	assert.ErrorIs(t, err, ErrAccountUnavailable)
}

// blindRepository hides other accounts from lookups so a taken value is only
// caught by Save.
type blindRepository struct {
	*account.MemoryRepository
}

func (r *blindRepository) FindByIdentifier(context.Context, string) (*account.Account, error) {
	return nil, account.ErrNotFound
}

func (r *blindRepository) FindByEmail(context.Context, string) (*account.Account, error) {
	return nil, account.ErrNotFound
}
