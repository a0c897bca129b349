package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upCalls   int
	downCalls int
	version   uint
	dirty     bool
	err       error
	closed    bool
}

func (m *fakeMigrator) Up() error                    { m.upCalls++; return m.err }
func (m *fakeMigrator) Down() error                  { m.downCalls++; return m.err }
func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, m.dirty, m.err }
func (m *fakeMigrator) Close() error                 { m.closed = true; return nil }

func stubMigrator(t *testing.T, m *fakeMigrator) *string {
	t.Helper()

	var gotURL string
	orig := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		gotURL = databaseURL
		return m, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return &gotURL
}

func runMigrateCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"migrate"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("ACCOUNTGUARD_DATABASE_URL", "")
	configFile = ""

	_, err := resolveDatabaseURL("")
	assertCode(t, err, "CONFIG_INVALID")
}

func TestMigrate_URLPrecedence(t *testing.T) {
	t.Setenv("ACCOUNTGUARD_DATABASE_URL", "postgres://env/db")

	got, err := resolveDatabaseURL("postgres://flag/db")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", got)

	got, err = resolveDatabaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", got)
}

func TestMigrate_Up(t *testing.T) {
	m := &fakeMigrator{}
	gotURL := stubMigrator(t, m)

	out, err := runMigrateCmd(t, "up", "--database-url", "postgres://localhost/accountguard")
	require.NoError(t, err)
	assert.Equal(t, 1, m.upCalls)
	assert.True(t, m.closed)
	assert.Equal(t, "postgres://localhost/accountguard", *gotURL)
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrate_UpFailure(t *testing.T) {
	m := &fakeMigrator{err: errors.New("relation exists")}
	stubMigrator(t, m)

	_, err := runMigrateCmd(t, "up", "--database-url", "postgres://localhost/accountguard")
	assertCode(t, err, "MIGRATION_FAILED")
	assert.True(t, m.closed)
}

func TestMigrate_Down(t *testing.T) {
	m := &fakeMigrator{}
	stubMigrator(t, m)

	out, err := runMigrateCmd(t, "down", "--database-url", "postgres://localhost/accountguard")
	require.NoError(t, err)
	assert.Equal(t, 1, m.downCalls)
	assert.Contains(t, out, "Migrations rolled back")
}

func TestMigrate_Version(t *testing.T) {
	tests := []struct {
		name  string
		m     *fakeMigrator
		wants string
	}{
		{name: "clean", m: &fakeMigrator{version: 2}, wants: "version 2\n"},
		{name: "dirty", m: &fakeMigrator{version: 1, dirty: true}, wants: "version 1 (dirty)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubMigrator(t, tt.m)

			out, err := runMigrateCmd(t, "version", "--database-url", "postgres://localhost/accountguard")
			require.NoError(t, err)
			assert.Equal(t, tt.wants, out)
		})
	}
}
