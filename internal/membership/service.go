package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/obs"
	"github.com/noah-isme/backend-kopi/internal/pricing"
)

var (
	// ErrNotFound is returned when no customer is registered under a phone number.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidPhone is returned for phone numbers that normalise to nothing useful.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrMissingOrder is returned when an accrual does not name its order.
	ErrMissingOrder = errors.New("accrual requires an order id")
)

// Customer is a loyalty member identified by phone number.
type Customer struct {
	ID         uuid.UUID `json:"id"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	Rank       string    `json:"rank"`
	TotalSpent int64     `json:"totalSpent"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RankValue parses the stored rank.
func (c Customer) RankValue() pricing.Rank {
	return pricing.ParseRank(c.Rank)
}

// Querier captures the persistence methods required by the membership service.
type Querier interface {
	GetCustomerByPhone(ctx context.Context, phone string) (Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]Customer, int64, error)
	UpsertCustomer(ctx context.Context, phone, name string) (Customer, error)
	SetCustomerRank(ctx context.Context, phone, rank string) (Customer, error)
	AccrueOrder(ctx context.Context, orderID uuid.UUID, phone string, amount int64) (Accrual, error)
}

// Accrual is the outcome of crediting one order.
type Accrual struct {
	Customer Customer
	Applied  bool // false when the order had already been credited
	Promoted bool
}

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service resolves membership ranks and accrues loyalty spend.
type Service struct {
	Q       Querier
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// LookupRank returns the rank held by the customer with the given phone.
// Unknown or blank phones yield RankNone.
func (s *Service) LookupRank(ctx context.Context, phone string) (pricing.Rank, error) {
	normalised := NormalisePhone(phone)
	if normalised == "" {
		return pricing.RankNone, nil
	}
	c, err := s.Q.GetCustomerByPhone(ctx, normalised)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pricing.RankNone, nil
		}
		return pricing.RankNone, err
	}
	return c.RankValue(), nil
}

// Get returns the customer registered under phone.
func (s *Service) Get(ctx context.Context, phone string) (Customer, error) {
	normalised := NormalisePhone(phone)
	if len(normalised) < 9 {
		return Customer{}, ErrInvalidPhone
	}
	return s.Q.GetCustomerByPhone(ctx, normalised)
}

// List returns a page of customers.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Customer, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	return s.Q.ListCustomers(ctx, perPage, (page-1)*perPage)
}

// Register creates or renames a customer.
func (s *Service) Register(ctx context.Context, phone, name string) (Customer, error) {
	normalised := NormalisePhone(phone)
	if len(normalised) < 9 {
		return Customer{}, ErrInvalidPhone
	}
	return s.Q.UpsertCustomer(ctx, normalised, name)
}

// SetRank overrides a customer's rank from the admin panel.
func (s *Service) SetRank(ctx context.Context, phone, label string) (Customer, error) {
	normalised := NormalisePhone(phone)
	if normalised == "" {
		return Customer{}, ErrInvalidPhone
	}
	return s.Q.SetCustomerRank(ctx, normalised, pricing.ParseRank(label).String())
}

// Accrue credits a paid order to the customer's spend and promotes them when a
// higher tier is reached. Ranks are never lowered here. Each order is credited
// at most once, so a retried task is safe.
func (s *Service) Accrue(ctx context.Context, orderID uuid.UUID, phone string, amount int64) (Customer, error) {
	normalised := NormalisePhone(phone)
	if normalised == "" || amount <= 0 {
		obs.RecordAccrual("skipped")
		return Customer{}, nil
	}
	if orderID == uuid.Nil {
		obs.RecordAccrual("error")
		return Customer{}, ErrMissingOrder
	}
	var res Accrual
	work := func(ctx context.Context) error {
		var err error
		res, err = s.Q.AccrueOrder(ctx, orderID, normalised, amount)
		return err
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "lock:membership:"+normalised, s.LockTTL, work)
	} else {
		err = work(ctx)
	}
	if err != nil {
		obs.RecordAccrual("error")
		return Customer{}, fmt.Errorf("accrue membership: %w", err)
	}
	switch {
	case !res.Applied:
		obs.RecordAccrual("duplicate")
		s.Logger.Info().Str("order_id", orderID.String()).Str("phone", normalised).Msg("membership accrual already applied")
	case res.Promoted:
		obs.RecordAccrual("ok")
		s.Logger.Info().Str("phone", normalised).Str("rank", res.Customer.Rank).Msg("membership promoted")
	default:
		obs.RecordAccrual("ok")
	}
	return res.Customer, nil
}
