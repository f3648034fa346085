package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-kopi/internal/coupon"
	"github.com/noah-isme/backend-kopi/internal/events"
	"github.com/noah-isme/backend-kopi/internal/membership"
	"github.com/noah-isme/backend-kopi/internal/menu"
	"github.com/noah-isme/backend-kopi/internal/obs"
	"github.com/noah-isme/backend-kopi/internal/order"
	"github.com/noah-isme/backend-kopi/internal/pricing"
)

const instrumentationName = "github.com/noah-isme/backend-kopi/internal/checkout"

var (
	// ErrInvalidChannel is returned for channels other than online and pos.
	ErrInvalidChannel = errors.New("unsupported sales channel")
	// ErrInvalidItem is returned for malformed order lines.
	ErrInvalidItem = errors.New("invalid order line")
	// ErrAddressRequired is returned for online orders without a delivery address.
	ErrAddressRequired = errors.New("delivery address is required")
)

// LineInput is one requested menu item.
type LineInput struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"gte=1,lte=99"`
}

// QuoteInput carries everything needed to price a basket.
type QuoteInput struct {
	Items         []LineInput `json:"items" validate:"required,min=1,max=50,dive"`
	CouponCode    string      `json:"couponCode" validate:"max=64"`
	CustomerPhone string      `json:"customerPhone" validate:"max=20"`
}

// OrderInput extends QuoteInput with fulfilment details.
type OrderInput struct {
	QuoteInput
	DeliveryAddress string `json:"deliveryAddress" validate:"max=300"`
	TableNumber     string `json:"tableNumber" validate:"max=20"`
	Notes           string `json:"notes" validate:"max=500"`
}

// Line is a priced order line.
type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unitPrice"`
	Qty       int       `json:"qty"`
	Subtotal  int64     `json:"subtotal"`
}

// Quote is the server-side price of a basket.
type Quote struct {
	Channel       string            `json:"channel"`
	Currency      string            `json:"currency"`
	Lines         []Line            `json:"lines"`
	CouponCode    string            `json:"couponCode,omitempty"`
	CustomerPhone string            `json:"customerPhone,omitempty"`
	Rank          string            `json:"rank"`
	RankLabel     string            `json:"rankLabel,omitempty"`
	Pricing       pricing.Breakdown `json:"pricing"`
}

// Actor identifies who places an order.
type Actor struct {
	UserID *uuid.UUID
}

// MenuPrices resolves authoritative prices. *menu.Service satisfies it.
type MenuPrices interface {
	Prices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]menu.Product, error)
}

// CouponResolver resolves redeemable coupons. *coupon.Service satisfies it.
type CouponResolver interface {
	Resolve(ctx context.Context, code string) (*pricing.Coupon, coupon.Rule, error)
}

// RankLookup resolves a customer's membership rank. *membership.Service satisfies it.
type RankLookup interface {
	LookupRank(ctx context.Context, phone string) (pricing.Rank, error)
}

// OrderCreator persists orders. *order.Store satisfies it.
type OrderCreator interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
}

// Service prices baskets and places orders for the storefront and point of sale.
type Service struct {
	Menu        MenuPrices
	Coupons     CouponResolver
	Members     RankLookup
	Orders      OrderCreator
	Events      order.Emitter
	Currency    string
	DeliveryFee int64
	Logger      zerolog.Logger
}

type instruments struct {
	finalTotal metric.Int64Histogram
	discount   metric.Int64Histogram
}

var (
	instOnce sync.Once
	inst     instruments
)

func meters() instruments {
	instOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		inst.finalTotal, _ = m.Int64Histogram("checkout.order.final_total",
			metric.WithDescription("Final payable total of placed orders."),
			metric.WithUnit("{VND}"))
		inst.discount, _ = m.Int64Histogram("checkout.order.discount",
			metric.WithDescription("Total discount granted on placed orders."),
			metric.WithUnit("{VND}"))
	})
	return inst
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Quote prices a basket without persisting anything.
func (s *Service) Quote(ctx context.Context, channel string, in QuoteInput) (Quote, error) {
	if s == nil || s.Menu == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel != order.ChannelOnline && channel != order.ChannelPOS {
		return Quote{}, ErrInvalidChannel
	}
	if len(in.Items) == 0 {
		return Quote{}, fmt.Errorf("%w: at least one item is required", ErrInvalidItem)
	}

	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, it := range in.Items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil || it.Qty <= 0 {
			return Quote{}, fmt.Errorf("%w: %s", ErrInvalidItem, it.ProductID)
		}
		ids = append(ids, id)
	}
	products, err := s.Menu.Prices(ctx, ids)
	if err != nil {
		return Quote{}, err
	}
	lines := make([]Line, 0, len(in.Items))
	items := make([]pricing.Item, 0, len(in.Items))
	for i, it := range in.Items {
		p := products[ids[i]]
		lines = append(lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Qty:       it.Qty,
			Subtotal:  p.Price * int64(it.Qty),
		})
		items = append(items, pricing.Item{Qty: it.Qty, UnitPrice: p.Price})
	}

	var fee int64
	if channel == order.ChannelOnline {
		fee = s.DeliveryFee
	}

	var couponPtr *pricing.Coupon
	code := strings.TrimSpace(in.CouponCode)
	if code != "" {
		if s.Coupons == nil {
			return Quote{}, coupon.ErrNotFound
		}
		couponPtr, _, err = s.Coupons.Resolve(ctx, code)
		if err != nil {
			return Quote{}, err
		}
	}

	phone := membership.NormalisePhone(in.CustomerPhone)
	rank := pricing.RankNone
	if phone != "" && s.Members != nil {
		rank, err = s.Members.LookupRank(ctx, phone)
		if err != nil {
			s.Logger.Warn().Err(err).Str("phone", phone).Msg("membership lookup failed, pricing without rank")
			rank = pricing.RankNone
		}
	}

	source := pricing.SelectSource(couponPtr, rank)
	breakdown := pricing.Calculate(pricing.Input{
		Subtotal:    pricing.Subtotal(items),
		DeliveryFee: fee,
		Source:      source,
	})
	obs.RecordQuote(channel, source.String(), breakdown.TotalDiscount)

	q := Quote{
		Channel:       channel,
		Currency:      s.Currency,
		Lines:         lines,
		CustomerPhone: phone,
		Rank:          rank.String(),
		Pricing:       breakdown,
	}
	if couponPtr != nil {
		q.CouponCode = couponPtr.Code
	}
	if rank != pricing.RankNone {
		q.RankLabel = rank.Label()
	}
	return q, nil
}

// PlaceOrder re-prices the basket and persists it as a pending order.
func (s *Service) PlaceOrder(ctx context.Context, channel string, in OrderInput, actor Actor) (order.Order, error) {
	ctx, span := tracer().Start(ctx, "checkout.PlaceOrder", trace.WithAttributes(attribute.String("channel", channel)))
	defer span.End()

	o, err := s.placeOrder(ctx, channel, in, actor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return order.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID.String()), attribute.Int64("order.final_total", o.FinalTotal))
	return o, nil
}

func (s *Service) placeOrder(ctx context.Context, channel string, in OrderInput, actor Actor) (order.Order, error) {
	if s.Orders == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	q, err := s.Quote(ctx, channel, in.QuoteInput)
	if err != nil {
		return order.Order{}, err
	}
	address := strings.TrimSpace(in.DeliveryAddress)
	if q.Channel == order.ChannelOnline && address == "" {
		return order.Order{}, ErrAddressRequired
	}

	o := order.Order{
		Channel:            q.Channel,
		Status:             order.StatusPending,
		CustomerPhone:      q.CustomerPhone,
		CouponCode:         q.CouponCode,
		MembershipRank:     q.Rank,
		Currency:           q.Currency,
		Subtotal:           q.Pricing.Subtotal,
		DeliveryFee:        q.Pricing.DeliveryFee,
		CouponDiscount:     q.Pricing.CouponDiscount,
		MembershipDiscount: q.Pricing.MembershipDiscount,
		TotalDiscount:      q.Pricing.TotalDiscount,
		FinalTotal:         q.Pricing.FinalTotal,
		DeliveryAddress:    address,
		TableNumber:        strings.TrimSpace(in.TableNumber),
		Notes:              strings.TrimSpace(in.Notes),
		Items:              make([]order.Item, 0, len(q.Lines)),
	}
	if q.Channel == order.ChannelPOS {
		o.CreatedBy = actor.UserID
	} else {
		o.UserID = actor.UserID
	}
	for _, l := range q.Lines {
		o.Items = append(o.Items, order.Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Qty:       l.Qty,
			Subtotal:  l.Subtotal,
		})
	}

	created, err := s.Orders.CreateOrder(ctx, o)
	if err != nil {
		return order.Order{}, fmt.Errorf("create order: %w", err)
	}
	obs.RecordOrderCreated(created.Channel)
	attrs := metric.WithAttributes(attribute.String("channel", created.Channel), attribute.String("source", q.Pricing.Source))
	m := meters()
	if m.finalTotal != nil {
		m.finalTotal.Record(ctx, created.FinalTotal, attrs)
	}
	if m.discount != nil {
		m.discount.Record(ctx, created.TotalDiscount, attrs)
	}
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, created.ID, order.Payload(created)); err != nil {
			s.Logger.Error().Err(err).Str("order_id", created.ID.String()).Msg("emit order.created")
		}
	}
	s.Logger.Info().
		Str("order_id", created.ID.String()).
		Str("channel", created.Channel).
		Str("discount_source", q.Pricing.Source).
		Int64("final_total", created.FinalTotal).
		Msg("order placed")
	return created, nil
}
