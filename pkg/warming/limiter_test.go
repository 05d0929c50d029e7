package warming

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyLimiter_CapsSends(t *testing.T) {
	ctx := context.Background()
	l := NewDailyLimiter(2)

	ok, err := l.CanSend(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.RecordSend(ctx))
	require.NoError(t, l.RecordSend(ctx))

	ok, err = l.CanSend(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := l.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	sent, err := l.SentToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestDailyLimiter_Unlimited(t *testing.T) {
	ctx := context.Background()

	for _, limit := range []int{0, -5} {
		l := NewDailyLimiter(limit)
		for i := 0; i < 100; i++ {
			require.NoError(t, l.RecordSend(ctx))
		}

		ok, err := l.CanSend(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		remaining, err := l.Remaining(ctx)
		require.NoError(t, err)
		assert.Equal(t, -1, remaining)
	}
}

func TestDailyLimiter_ResetsAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	l := NewDailyLimiter(1)

	current := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	require.NoError(t, l.RecordSend(ctx))
	ok, err := l.CanSend(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Two minutes later it is March 2nd UTC and the budget is fresh.
	current = current.Add(2 * time.Minute)

	ok, err = l.CanSend(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	sent, err := l.SentToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func newTestRedisLimiter(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, "send_limit:test", limit), mr
}

func TestRedisLimiter_CapsSends(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestRedisLimiter(t, 3)

	for i := 0; i < 3; i++ {
		ok, err := l.CanSend(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, l.RecordSend(ctx))
	}

	ok, err := l.CanSend(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	sent, err := l.SentToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}

func TestRedisLimiter_CounterExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedisLimiter(t, 5)

	require.NoError(t, l.RecordSend(ctx))

	// Counter key carries a TTL so stale days clean themselves up.
	mr.FastForward(49 * time.Hour)

	sent, err := l.SentToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestRedisLimiter_Unlimited(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestRedisLimiter(t, 0)

	ok, err := l.CanSend(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	remaining, err := l.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)
}
