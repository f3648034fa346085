package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow adapts a ulule limiter store to Limiter. It counts in fixed
// windows, which is cheaper than SlidingWindow for coarse global limits.
type FixedWindow struct {
	Store limiter.Store

	mu       sync.Mutex
	limiters map[limiter.Rate]*limiter.Limiter
}

// NewFixedWindow builds a FixedWindow over a Redis store with prefix.
func NewFixedWindow(client redis.UniversalClient, prefix string) (*FixedWindow, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit store: %w", err)
	}
	return &FixedWindow{Store: store}, nil
}

// Allow implements Limiter.
func (f *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f == nil || f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lctx, err := f.limiterFor(limiter.Rate{Period: window, Limit: int64(max)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

func (f *FixedWindow) limiterFor(rate limiter.Rate) *limiter.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[rate]; ok {
		return l
	}
	if f.limiters == nil {
		f.limiters = make(map[limiter.Rate]*limiter.Limiter)
	}
	l := limiter.New(f.Store, rate)
	f.limiters[rate] = l
	return l
}

// ParseRate converts a ulule formatted rate such as "600-M" into a window and maximum.
func ParseRate(formatted string) (time.Duration, int, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return 0, 0, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	return rate.Period, int(rate.Limit), nil
}
