package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSliding(t *testing.T) (SlidingWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return SlidingWindow{Client: client, Prefix: "rl:"}, mr
}

func TestSlidingWindowLoginAttempts(t *testing.T) {
	limiter, mr := newSliding(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "login:ip:192.0.2.7", window, 2)
		require.NoError(t, err)
		require.True(t, allowed, "attempt %d", i)
		require.Equal(t, 1-i, remaining)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "login:ip:192.0.2.7", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))
	require.True(t, mr.Exists("rl:login:ip:192.0.2.7"))

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "login:ip:192.0.2.7", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	limiter, _ := newSliding(t)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "quote:user:a", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "quote:user:b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "quote:user:a", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestSlidingWindowWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := SlidingWindow{}.Allow(context.Background(), "k", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
