package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/cache"
	"github.com/noah-isme/backend-kopi/internal/order"
)

// ErrInvalidRange is returned when from is not before to.
var ErrInvalidRange = errors.New("from must be before to")

// ErrUnknownChannel is returned for channel filters other than online or pos.
var ErrUnknownChannel = errors.New("unknown channel")

// SalesDay aggregates the orders placed on one UTC day.
type SalesDay struct {
	Day              time.Time `json:"day"`
	Orders           int64     `json:"orders"`
	CompletedOrders  int64     `json:"completedOrders"`
	CanceledOrders   int64     `json:"canceledOrders"`
	Revenue          int64     `json:"revenue"`
	Discounts        int64     `json:"discounts"`
	CouponOrders     int64     `json:"couponOrders"`
	MembershipOrders int64     `json:"membershipOrders"`
}

// TopProduct ranks a menu item by completed quantity.
type TopProduct struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int64  `json:"qty"`
	Revenue   int64  `json:"revenue"`
}

// Overview sums a sales range for dashboards.
type Overview struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Orders           int64     `json:"orders"`
	CompletedOrders  int64     `json:"completedOrders"`
	CanceledOrders   int64     `json:"canceledOrders"`
	Revenue          int64     `json:"revenue"`
	Discounts        int64     `json:"discounts"`
	CouponOrders     int64     `json:"couponOrders"`
	MembershipOrders int64     `json:"membershipOrders"`
	AverageTicket    int64     `json:"averageTicket"`
}

// Querier defines the database access required for analytics operations.
type Querier interface {
	SalesDaily(ctx context.Context, from, to time.Time, channel string) ([]SalesDay, error)
	TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]TopProduct, error)
}

// Service provides cached sales reports over completed and canceled orders.
type Service struct {
	Q            Querier
	Cache        *cache.JSON
	DefaultRange int
	Now          func() time.Time
	Logger       zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Range resolves the default reporting window ending now.
func (s *Service) Range(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = s.DefaultRange
	}
	if days <= 0 {
		days = 30
	}
	to := s.now().UTC()
	return to.AddDate(0, 0, -days), to
}

// SalesRange returns daily sales between from (inclusive) and to (exclusive).
func (s *Service) SalesRange(ctx context.Context, from, to time.Time, channel string) ([]SalesDay, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("analytics service not configured")
	}
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	channel = strings.ToLower(strings.TrimSpace(channel))
	switch channel {
	case "", order.ChannelOnline, order.ChannelPOS:
	default:
		return nil, ErrUnknownChannel
	}
	key := cacheKey("an", "sales", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), channel)
	var rows []SalesDay
	if found, err := s.Cache.Get(ctx, key, &rows); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("analytics cache read")
	} else if found {
		return rows, nil
	}
	rows, err := s.Q.SalesDaily(ctx, from, to, channel)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts returns menu items ordered by completed quantity.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("analytics service not configured")
	}
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", "top", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), limit, offset)
	var rows []TopProduct
	if found, err := s.Cache.Get(ctx, key, &rows); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("analytics cache read")
	} else if found {
		return rows, nil
	}
	rows, err := s.Q.TopProducts(ctx, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// Overview sums SalesRange into a single summary.
func (s *Service) Overview(ctx context.Context, from, to time.Time, channel string) (Overview, error) {
	days, err := s.SalesRange(ctx, from, to, channel)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{From: from, To: to}
	for _, d := range days {
		out.Orders += d.Orders
		out.CompletedOrders += d.CompletedOrders
		out.CanceledOrders += d.CanceledOrders
		out.Revenue += d.Revenue
		out.Discounts += d.Discounts
		out.CouponOrders += d.CouponOrders
		out.MembershipOrders += d.MembershipOrders
	}
	if out.CompletedOrders > 0 {
		out.AverageTicket = out.Revenue / out.CompletedOrders
	}
	return out, nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if err := s.Cache.Set(ctx, key, value); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("analytics cache write")
	}
}
