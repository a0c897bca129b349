package accountguard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/password"
)

const (
	testSecret   = "test-secret-test-secret-test-secret!"
	testPassword = "Correct!Pass1"
)

var t0 = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[email] = token
	return nil
}

func (m *recordingMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type harness struct {
	engine *Engine
	repo   account.Repository
	mem    *account.MemoryRepository
	sink   *audit.MemorySink
	clock  *testClock
	mailer *recordingMailer
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Password.Hashing.BcryptCost = bcrypt.MinCost
	cfg.Audit.Async = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type harnessOption func(*Builder, *harness)

func withRepository(wrap func(*account.MemoryRepository) account.Repository) harnessOption {
	return func(b *Builder, h *harness) {
		h.repo = wrap(h.mem)
		b.WithRepository(h.repo)
	}
}

func withConfig(mutate func(*Config)) harnessOption {
	return func(b *Builder, _ *harness) {
		cfg := b.config
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		mem:    account.NewMemoryRepository(),
		sink:   &audit.MemorySink{},
		clock:  &testClock{now: t0},
		mailer: &recordingMailer{},
	}
	h.repo = h.mem

	b := New().
		WithConfig(testConfig()).
		WithRepository(h.repo).
		WithAuditSink(h.sink).
		WithMailer(h.mailer).
		WithClock(h.clock.Now)
	for _, opt := range opts {
		opt(b, h)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *harness) createAccount(t *testing.T, username string, active bool) *account.Account {
	t.Helper()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	a := &account.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     active,
	}
	require.NoError(t, h.mem.Create(context.Background(), a))
	return a
}

func (h *harness) reload(t *testing.T, id string) *account.Account {
	t.Helper()
	a, err := h.mem.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a
}
