package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/backend-kopi/internal/common"
)

const defaultTimeout = 500 * time.Millisecond

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips readiness. The API clears it while draining so load
// balancers stop routing before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Pinger is satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check probes one dependency.
type Check struct {
	Name    string
	Timeout time.Duration
	Probe   func(ctx context.Context) error
}

// DB wraps a Postgres pool as a Check.
func DB(p Pinger, timeout time.Duration) Check {
	return Check{Name: "db", Timeout: timeout, Probe: p.Ping}
}

// Redis wraps a ping function as a Check. Pass func(ctx) error { return rdb.Ping(ctx).Err() }.
func Redis(ping func(context.Context) error, timeout time.Duration) Check {
	return Check{Name: "redis", Timeout: timeout, Probe: ping}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready probes every dependency concurrently and reports 503 when any fails
// or the process is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "draining"})
		return
	}
	results := make(map[string]string, len(h.Checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range h.Checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()
			status := "ok"
			if err := c.run(r.Context()); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[c.Name] = status
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	code := http.StatusOK
	overall := "ok"
	for _, s := range results {
		if s != "ok" {
			code = http.StatusServiceUnavailable
			overall = "degraded"
			break
		}
	}
	common.JSON(w, code, map[string]any{"status": overall, "checks": results})
}

func (c Check) run(ctx context.Context) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Probe(ctx)
}
