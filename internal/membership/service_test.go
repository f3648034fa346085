package membership

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kopi/internal/events"
	"github.com/noah-isme/backend-kopi/internal/lock"
	"github.com/noah-isme/backend-kopi/internal/pricing"
)

type memoryQueries struct {
	mu        sync.Mutex
	customers map[string]Customer
	accrued   map[uuid.UUID]bool
	// failAccruals makes the next n AccrueOrder calls fail after the spend
	// was computed, discarding the change like a rolled back transaction.
	failAccruals int
}

func newMemoryQueries(customers ...Customer) *memoryQueries {
	q := &memoryQueries{customers: map[string]Customer{}, accrued: map[uuid.UUID]bool{}}
	for _, c := range customers {
		q.customers[c.Phone] = c
	}
	return q
}

func (q *memoryQueries) GetCustomerByPhone(_ context.Context, phone string) (Customer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.customers[phone]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (q *memoryQueries) ListCustomers(_ context.Context, limit, offset int) ([]Customer, int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Customer, 0, len(q.customers))
	for _, c := range q.customers {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (q *memoryQueries) UpsertCustomer(_ context.Context, phone, name string) (Customer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.customers[phone]
	if !ok {
		c = Customer{Phone: phone, Rank: "none"}
	}
	if name != "" {
		c.Name = name
	}
	q.customers[phone] = c
	return c, nil
}

func (q *memoryQueries) SetCustomerRank(_ context.Context, phone, rank string) (Customer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.customers[phone]
	if !ok {
		return Customer{}, ErrNotFound
	}
	c.Rank = rank
	q.customers[phone] = c
	return c, nil
}

func (q *memoryQueries) AccrueOrder(_ context.Context, orderID uuid.UUID, phone string, amount int64) (Accrual, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.customers[phone]
	if !ok {
		c = Customer{Phone: phone, Rank: "none"}
	}
	if q.accrued[orderID] {
		return Accrual{Customer: c}, nil
	}
	c.TotalSpent += amount
	promoted := false
	if earned := RankForSpend(c.TotalSpent); earned > c.RankValue() {
		c.Rank = earned.String()
		promoted = true
	}
	if q.failAccruals > 0 {
		q.failAccruals--
		return Accrual{}, errors.New("db blip")
	}
	q.accrued[orderID] = true
	q.customers[phone] = c
	return Accrual{Customer: c, Applied: true, Promoted: promoted}, nil
}

func TestLookupRankFailsOpen(t *testing.T) {
	svc := &Service{Q: newMemoryQueries(Customer{Phone: "0901234567", Rank: "gold"})}

	rank, err := svc.LookupRank(context.Background(), "+84 901 234 567")
	require.NoError(t, err)
	require.Equal(t, pricing.RankGold, rank)

	rank, err = svc.LookupRank(context.Background(), "0999999999")
	require.NoError(t, err)
	require.Equal(t, pricing.RankNone, rank)

	rank, err = svc.LookupRank(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, pricing.RankNone, rank)
}

func TestLookupRankUnknownStoredLabel(t *testing.T) {
	svc := &Service{Q: newMemoryQueries(Customer{Phone: "0901234567", Rank: "platinum"})}
	rank, err := svc.LookupRank(context.Background(), "0901234567")
	require.NoError(t, err)
	require.Equal(t, pricing.RankNone, rank)
}

func TestAccruePromotesButNeverDemotes(t *testing.T) {
	q := newMemoryQueries(Customer{Phone: "0901234567", Rank: "diamond"})
	svc := &Service{Q: q}

	c, err := svc.Accrue(context.Background(), uuid.New(), "0901234567", 100_000)
	require.NoError(t, err)
	require.Equal(t, "diamond", c.Rank)

	c, err = svc.Accrue(context.Background(), uuid.New(), "0912000000", 600_000)
	require.NoError(t, err)
	require.Equal(t, "bronze", c.Rank)

	c, err = svc.Accrue(context.Background(), uuid.New(), "0912000000", 1_500_000)
	require.NoError(t, err)
	require.Equal(t, "silver", c.Rank)
	require.Equal(t, int64(2_100_000), c.TotalSpent)

	c, err = svc.Accrue(context.Background(), uuid.New(), "", 1_500_000)
	require.NoError(t, err)
	require.Equal(t, Customer{}, c)

	_, err = svc.Accrue(context.Background(), uuid.Nil, "0912000000", 1_000)
	require.ErrorIs(t, err, ErrMissingOrder)
}

func TestAccrueCreditsEachOrderOnce(t *testing.T) {
	q := newMemoryQueries()
	q.failAccruals = 1
	svc := &Service{Q: q}
	orderID := uuid.New()

	_, err := svc.Accrue(context.Background(), orderID, "0901234567", 600_000)
	require.Error(t, err)
	_, err = q.GetCustomerByPhone(context.Background(), "0901234567")
	require.ErrorIs(t, err, ErrNotFound)

	c, err := svc.Accrue(context.Background(), orderID, "0901234567", 600_000)
	require.NoError(t, err)
	require.Equal(t, int64(600_000), c.TotalSpent)
	require.Equal(t, "bronze", c.Rank)

	c, err = svc.Accrue(context.Background(), orderID, "0901234567", 600_000)
	require.NoError(t, err)
	require.Equal(t, int64(600_000), c.TotalSpent)
	require.Equal(t, "bronze", c.Rank)
}

func TestAccrueUnderRedisLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := newMemoryQueries()
	svc := &Service{Q: q, Locker: lock.Locker{R: client, RetryBackoff: time.Millisecond}, LockTTL: time.Second}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Accrue(context.Background(), uuid.New(), "0901234567", 250_000)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := q.GetCustomerByPhone(context.Background(), "0901234567")
	require.NoError(t, err)
	require.Equal(t, int64(2_500_000), c.TotalSpent)
	require.Equal(t, "silver", c.Rank)
}

func TestHandlerLookup(t *testing.T) {
	h := &Handler{Svc: &Service{Q: newMemoryQueries(Customer{Phone: "0901234567", Name: "Lan", Rank: "gold"})}}

	rr := httptest.NewRecorder()
	h.Lookup(rr, httptest.NewRequest(http.MethodGet, "/customers/lookup?phone=0901234567", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data customerView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Vàng", body.Data.RankLabel)

	rr = httptest.NewRecorder()
	h.Lookup(rr, httptest.NewRequest(http.MethodGet, "/customers/lookup?phone=0988888888", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Lookup(rr, httptest.NewRequest(http.MethodGet, "/customers/lookup?phone=12", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleAccrueTask(t *testing.T) {
	q := newMemoryQueries()
	svc := &Service{Q: q}

	q.failAccruals = 1
	task, err := events.NewAccrueTask(events.AccruePayload{OrderID: uuid.NewString(), Phone: "+84901234567", Amount: 5_200_000})
	require.NoError(t, err)
	require.Error(t, svc.HandleAccrueTask(context.Background(), task))
	require.NoError(t, svc.HandleAccrueTask(context.Background(), task))
	require.NoError(t, svc.HandleAccrueTask(context.Background(), task))

	c, err := q.GetCustomerByPhone(context.Background(), "0901234567")
	require.NoError(t, err)
	require.Equal(t, "gold", c.Rank)
	require.Equal(t, int64(5_200_000), c.TotalSpent)

	err = svc.HandleAccrueTask(context.Background(), asynq.NewTask(events.TypeMembershipAccrue, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	bad, err := events.NewAccrueTask(events.AccruePayload{OrderID: "o1", Phone: "0901234567", Amount: 1_000})
	require.NoError(t, err)
	require.ErrorIs(t, svc.HandleAccrueTask(context.Background(), bad), asynq.SkipRetry)
}
