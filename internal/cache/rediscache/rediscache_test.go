package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()

	_, ok, err := c.Get(ctx, "stats:7d")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "stats:7d", []byte(`{"totalSearches":3}`), time.Minute))

	b, ok, err := c.Get(ctx, "stats:7d")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"totalSearches":3}`), b)
}

func TestSourceMinuteKey(t *testing.T) {
	at := time.Date(2025, 8, 28, 12, 0, 42, 0, time.UTC)
	require.Equal(t, "rl:source:booking:202508281200", SourceMinuteKey("booking", at))

	// Одна и та же минута в другой зоне даёт тот же ключ.
	msk := at.In(time.FixedZone("MSK", 3*3600))
	require.Equal(t, SourceMinuteKey("booking", at), SourceMinuteKey("booking", msk))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:source:booking:202508281200", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:source:booking:202508281200", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:source:booking:202508281200", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}
