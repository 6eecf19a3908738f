package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func limiters(t *testing.T, now func() time.Time) map[string]Limiter {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	redisL := NewRedisLimiter(client, "test:")
	redisL.now = now
	memL := NewMemoryLimiter()
	memL.now = now
	return map[string]Limiter{"redis": redisL, "memory": memL}
}

func TestAllowBlocksAfterMax(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 10, 0, time.UTC)
	for name, l := range limiters(t, func() time.Time { return base }) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			lim := Limit{Max: 2, Window: time.Minute}

			r1, err := l.Allow(ctx, "login|a@x.com|1.2.3.4", lim)
			require.NoError(t, err)
			require.True(t, r1.Allowed)
			require.EqualValues(t, 1, r1.Remaining)

			r2, err := l.Allow(ctx, "login|a@x.com|1.2.3.4", lim)
			require.NoError(t, err)
			require.True(t, r2.Allowed)

			r3, err := l.Allow(ctx, "login|a@x.com|1.2.3.4", lim)
			require.NoError(t, err)
			require.False(t, r3.Allowed)
			require.EqualValues(t, 0, r3.Remaining)
			require.Equal(t, 50*time.Second, r3.RetryAfter)

			other, err := l.Allow(ctx, "login|b@x.com|1.2.3.4", lim)
			require.NoError(t, err)
			require.True(t, other.Allowed)
		})
	}
}

func TestAllowResetsOnNextWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 59, 0, time.UTC)
	clock := func() time.Time { return now }
	for name, l := range limiters(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			lim := Limit{Max: 1, Window: time.Minute}
			now = time.Date(2026, 1, 1, 10, 0, 59, 0, time.UTC)

			r, err := l.Allow(ctx, "k", lim)
			require.NoError(t, err)
			require.True(t, r.Allowed)
			r, err = l.Allow(ctx, "k", lim)
			require.NoError(t, err)
			require.False(t, r.Allowed)

			now = now.Add(2 * time.Second)
			r, err = l.Allow(ctx, "k", lim)
			require.NoError(t, err)
			require.True(t, r.Allowed)
		})
	}
}

func TestDisabledLimitAlwaysAllows(t *testing.T) {
	l := NewMemoryLimiter()
	for i := 0; i < 5; i++ {
		r, err := l.Allow(context.Background(), "k", Limit{})
		require.NoError(t, err)
		require.True(t, r.Allowed)
	}
}
