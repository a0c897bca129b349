package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestAllow_FixedWindow(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "login", Limit: 5, Window: time.Minute}

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, rule, "10.0.0.1")
		require.NoError(t, err, "hit %d", i)
		assert.Equal(t, int64(i), d.Count)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, err := l.Allow(ctx, rule, "10.0.0.1")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	_, err = l.Allow(ctx, rule, "10.0.0.2")
	assert.NoError(t, err, "other keys have their own budget")

	mr.FastForward(61 * time.Second)

	_, err = l.Allow(ctx, rule, "10.0.0.1")
	assert.NoError(t, err, "a new window starts after expiry")
}

func TestAllow_RulesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	login := Rule{Name: "login", Limit: 1, Window: time.Minute}
	reset := Rule{Name: "reset", Limit: 1, Window: time.Minute}

	_, err := l.Allow(ctx, login, "k")
	require.NoError(t, err)
	_, err = l.Allow(ctx, reset, "k")
	require.NoError(t, err)
	_, err = l.Allow(ctx, login, "k")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCountAndReset(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "reset", Limit: 3, Window: 15 * time.Minute}

	n, err := l.Count(ctx, rule, "k")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _ = l.Allow(ctx, rule, "k")
	_, _ = l.Allow(ctx, rule, "k")
	n, err = l.Count(ctx, rule, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, l.Reset(ctx, rule, "k"))
	n, err = l.Count(ctx, rule, "k")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAllow_InvalidRule(t *testing.T) {
	l, _ := newTestLimiter(t)
	_, err := l.Allow(context.Background(), Rule{Name: "x"}, "k")
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestAllow_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	_, err := l.Allow(context.Background(), Rule{Name: "login", Limit: 1, Window: time.Minute}, "k")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
	assert.ErrorIs(t, l.Ping(context.Background()), ErrRedisUnavailable)
}
