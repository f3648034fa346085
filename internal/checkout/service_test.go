package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kopi/internal/common"
	"github.com/noah-isme/backend-kopi/internal/coupon"
	"github.com/noah-isme/backend-kopi/internal/events"
	"github.com/noah-isme/backend-kopi/internal/menu"
	"github.com/noah-isme/backend-kopi/internal/order"
	"github.com/noah-isme/backend-kopi/internal/pricing"
)

var (
	latteID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	cakeID  = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

type stubMenu struct{}

func (stubMenu) Prices(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]menu.Product, error) {
	catalog := map[uuid.UUID]menu.Product{
		latteID: {ID: latteID, Name: "Bạc xỉu", Price: 45000, Active: true},
		cakeID:  {ID: cakeID, Name: "Tiramisu", Price: 55000, Active: true},
	}
	out := map[uuid.UUID]menu.Product{}
	for _, id := range ids {
		p, ok := catalog[id]
		if !ok {
			return nil, menu.ErrUnavailable
		}
		out[id] = p
	}
	return out, nil
}

type stubCoupons map[string]coupon.Rule

func (s stubCoupons) Resolve(_ context.Context, code string) (*pricing.Coupon, coupon.Rule, error) {
	rule, ok := s[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, coupon.Rule{}, coupon.ErrNotFound
	}
	if rule.Status != coupon.StatusActive {
		return nil, rule, coupon.ErrInactive
	}
	c := rule.Coupon()
	return &c, rule, nil
}

type stubRanks struct {
	ranks map[string]pricing.Rank
	err   error
}

func (s stubRanks) LookupRank(_ context.Context, phone string) (pricing.Rank, error) {
	if s.err != nil {
		return pricing.RankNone, s.err
	}
	return s.ranks[phone], nil
}

type captureOrders struct {
	created []order.Order
}

func (c *captureOrders) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	o.ID = uuid.New()
	c.created = append(c.created, o)
	return o, nil
}

type captureEvents struct {
	topics []string
}

func (c *captureEvents) Emit(_ context.Context, topic string, id uuid.UUID, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: id}, nil
}

func newService() (*Service, *captureOrders, *captureEvents) {
	orders := &captureOrders{}
	evs := &captureEvents{}
	return &Service{
		Menu: stubMenu{},
		Coupons: stubCoupons{
			"CAFE10": {Code: "CAFE10", Status: coupon.StatusActive, PromoteType: "percentage", Discount: 10},
			"OLD":    {Code: "OLD", Status: coupon.StatusInactive, PromoteType: "fixed", Discount: 5000},
		},
		Members:     stubRanks{ranks: map[string]pricing.Rank{"0901234567": pricing.RankGold}},
		Orders:      orders,
		Events:      evs,
		Currency:    "VND",
		DeliveryFee: 15000,
	}, orders, evs
}

func basket(extra ...LineInput) []LineInput {
	return append([]LineInput{{ProductID: latteID.String(), Qty: 2}}, extra...)
}

func TestQuoteOnlineMembership(t *testing.T) {
	svc, _, _ := newService()
	q, err := svc.Quote(context.Background(), "online", QuoteInput{Items: basket(), CustomerPhone: "+84 901 234 567"})
	require.NoError(t, err)
	require.Equal(t, int64(90000), q.Pricing.Subtotal)
	require.Equal(t, int64(15000), q.Pricing.DeliveryFee)
	require.Equal(t, int64(7350), q.Pricing.MembershipDiscount)
	require.Equal(t, int64(97650), q.Pricing.FinalTotal)
	require.Equal(t, "membership", q.Pricing.Source)
	require.Equal(t, "gold", q.Rank)
	require.Equal(t, "0901234567", q.CustomerPhone)
}

func TestQuoteCouponSuppressesMembership(t *testing.T) {
	svc, _, _ := newService()
	q, err := svc.Quote(context.Background(), "online", QuoteInput{Items: basket(), CouponCode: "cafe10", CustomerPhone: "0901234567"})
	require.NoError(t, err)
	require.Equal(t, int64(10500), q.Pricing.CouponDiscount)
	require.Zero(t, q.Pricing.MembershipDiscount)
	require.True(t, q.Pricing.MembershipSkipped)
	require.Equal(t, int64(94500), q.Pricing.FinalTotal)
	require.Equal(t, "CAFE10", q.CouponCode)
}

func TestQuotePOSHasNoDeliveryFee(t *testing.T) {
	svc, _, _ := newService()
	q, err := svc.Quote(context.Background(), "pos", QuoteInput{Items: basket(LineInput{ProductID: cakeID.String(), Qty: 1})})
	require.NoError(t, err)
	require.Zero(t, q.Pricing.DeliveryFee)
	require.Equal(t, int64(145000), q.Pricing.FinalTotal)
	require.Equal(t, "none", q.Pricing.Source)
	require.Len(t, q.Lines, 2)
}

func TestQuoteErrors(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Quote(ctx, "drive-thru", QuoteInput{Items: basket()})
	require.ErrorIs(t, err, ErrInvalidChannel)

	_, err = svc.Quote(ctx, "online", QuoteInput{Items: basket(), CouponCode: "OLD"})
	require.ErrorIs(t, err, coupon.ErrInactive)

	_, err = svc.Quote(ctx, "online", QuoteInput{Items: basket(), CouponCode: "NOPE"})
	require.ErrorIs(t, err, coupon.ErrNotFound)

	_, err = svc.Quote(ctx, "online", QuoteInput{Items: basket(LineInput{ProductID: uuid.NewString(), Qty: 1})})
	require.ErrorIs(t, err, menu.ErrUnavailable)

	svc.Members = stubRanks{err: errors.New("db down")}
	q, err := svc.Quote(ctx, "online", QuoteInput{Items: basket(), CustomerPhone: "0901234567"})
	require.NoError(t, err)
	require.Equal(t, "none", q.Rank)
}

func TestPlaceOrderPersistsAndEmits(t *testing.T) {
	svc, orders, evs := newService()
	user := uuid.New()

	_, err := svc.PlaceOrder(context.Background(), "online", OrderInput{QuoteInput: QuoteInput{Items: basket()}}, Actor{UserID: &user})
	require.ErrorIs(t, err, ErrAddressRequired)

	o, err := svc.PlaceOrder(context.Background(), "online", OrderInput{
		QuoteInput:      QuoteInput{Items: basket(), CustomerPhone: "0901234567"},
		DeliveryAddress: "12 Lý Tự Trọng, Q1",
	}, Actor{UserID: &user})
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, o.Status)
	require.Equal(t, &user, o.UserID)
	require.Nil(t, o.CreatedBy)
	require.Equal(t, int64(97650), o.FinalTotal)
	require.Equal(t, "gold", o.MembershipRank)
	require.Len(t, o.Items, 1)
	require.Equal(t, int64(90000), o.Items[0].Subtotal)
	require.Len(t, orders.created, 1)
	require.Equal(t, []string{events.TopicOrderCreated}, evs.topics)

	staff := uuid.New()
	o, err = svc.PlaceOrder(context.Background(), "pos", OrderInput{QuoteInput: QuoteInput{Items: basket()}, TableNumber: "7"}, Actor{UserID: &staff})
	require.NoError(t, err)
	require.Equal(t, &staff, o.CreatedBy)
	require.Nil(t, o.UserID)
	require.Equal(t, "7", o.TableNumber)
}

func TestHandlers(t *testing.T) {
	svc, _, _ := newService()
	h := &Handler{Svc: svc}

	body := `{"items":[{"productId":"` + latteID.String() + `","qty":2}],"couponCode":"OLD"}`
	rec := httptest.NewRecorder()
	h.Quote(rec, httptest.NewRequest(http.MethodPost, "/checkout/quote", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "COUPON_INVALID")

	rec = httptest.NewRecorder()
	h.Quote(rec, httptest.NewRequest(http.MethodPost, "/checkout/quote", strings.NewReader(`{"items":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body = `{"items":[{"productId":"` + latteID.String() + `","qty":1}]}`
	rec = httptest.NewRecorder()
	h.POSQuote(rec, httptest.NewRequest(http.MethodPost, "/pos/quote", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(45000), resp.Data.Pricing.FinalTotal)

	rec = httptest.NewRecorder()
	h.POSOrder(rec, httptest.NewRequest(http.MethodPost, "/pos/orders", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/pos/orders", strings.NewReader(body))
	req = req.WithContext(common.WithUserID(req.Context(), uuid.NewString()))
	rec = httptest.NewRecorder()
	h.POSOrder(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}
