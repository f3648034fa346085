package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kopi/internal/cache"
)

type payload struct {
	Code string `json:"code"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewJSON(client, time.Minute)
	ctx := context.Background()
	key := cache.KeyCoupon(" CAFE10 ")
	require.Equal(t, "coupon:cafe10", key)

	var got payload
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, key, payload{Code: "CAFE10"}))
	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "CAFE10", got.Code)

	require.NoError(t, c.Delete(ctx, key))
	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, key, payload{Code: "CAFE10"}))
	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestJSONDisabled(t *testing.T) {
	var c *cache.JSON
	found, err := c.Get(context.Background(), "k", &payload{})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.Set(context.Background(), "k", payload{}))
}
