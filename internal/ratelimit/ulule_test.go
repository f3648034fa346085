package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	window, max, err := ParseRate("600-M")
	require.NoError(t, err)
	require.Equal(t, time.Minute, window)
	require.Equal(t, 600, max)

	_, _, err = ParseRate("lots")
	require.Error(t, err)
}

func TestFixedWindowAllow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fw, err := NewFixedWindow(client, "kopi:rl")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := fw.Allow(ctx, "1.2.3.4", time.Minute, 2)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 1-i, remaining)
	}
	allowed, remaining, reset, err := fw.Allow(ctx, "1.2.3.4", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = fw.Allow(ctx, "5.6.7.8", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}
