package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/cache"
	"github.com/noah-isme/backend-kopi/internal/obs"
	"github.com/noah-isme/backend-kopi/internal/pricing"
)

// Querier captures the persistence methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, code string) (Rule, error)
	ListCoupons(ctx context.Context, limit, offset int) ([]Rule, int64, error)
	CreateCoupon(ctx context.Context, r Rule) (Rule, error)
	UpdateCoupon(ctx context.Context, code string, r Rule) (Rule, error)
	SetCouponStatus(ctx context.Context, code, status string) error
}

// Input is the admin payload for creating or updating a coupon.
type Input struct {
	Code        string     `json:"code" validate:"omitempty,max=64"`
	PromoteType string     `json:"promoteType" validate:"required"`
	Discount    int64      `json:"discount" validate:"gte=0"`
	Status      string     `json:"status" validate:"omitempty,oneof=active inactive"`
	Description string     `json:"description" validate:"max=500"`
	ValidFrom   *time.Time `json:"validFrom"`
	ValidTo     *time.Time `json:"validTo"`
}

// Service resolves coupons for checkout and manages promotions.
type Service struct {
	Q      Querier
	Cache  *cache.JSON
	Now    func() time.Time
	Logger zerolog.Logger
}

// Lookup loads a coupon by code through the cache without checking eligibility.
func (s *Service) Lookup(ctx context.Context, code string) (Rule, error) {
	if s == nil || s.Q == nil {
		return Rule{}, errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Rule{}, ErrNotFound
	}
	key := cache.KeyCoupon(trimmed)
	var rule Rule
	if found, err := s.Cache.Get(ctx, key, &rule); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("coupon cache read")
	} else if found {
		return rule, nil
	}
	rule, err := s.Q.GetCouponByCode(ctx, trimmed)
	if err != nil {
		return Rule{}, err
	}
	if err := s.Cache.Set(ctx, key, rule); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("coupon cache write")
	}
	return rule, nil
}

// Resolve returns the calculator coupon for code when it is currently redeemable.
func (s *Service) Resolve(ctx context.Context, code string) (*pricing.Coupon, Rule, error) {
	rule, err := s.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.RecordCouponLookup("not_found")
		} else {
			obs.RecordCouponLookup("error")
		}
		return nil, Rule{}, err
	}
	if err := rule.Validate(s.now()); err != nil {
		obs.RecordCouponLookup("ineligible")
		return nil, rule, err
	}
	obs.RecordCouponLookup("ok")
	c := rule.Coupon()
	return &c, rule, nil
}

// List returns a page of coupons for the promotion panel.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Rule, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	return s.Q.ListCoupons(ctx, perPage, (page-1)*perPage)
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, in Input) (Rule, error) {
	rule, err := buildRule(in)
	if err != nil {
		return Rule{}, err
	}
	if rule.Code == "" {
		return Rule{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	created, err := s.Q.CreateCoupon(ctx, rule)
	if err != nil {
		return Rule{}, err
	}
	s.invalidate(ctx, created.Code)
	return created, nil
}

// Update replaces the mutable fields of an existing coupon.
func (s *Service) Update(ctx context.Context, code string, in Input) (Rule, error) {
	rule, err := buildRule(in)
	if err != nil {
		return Rule{}, err
	}
	updated, err := s.Q.UpdateCoupon(ctx, strings.TrimSpace(code), rule)
	if err != nil {
		return Rule{}, err
	}
	s.invalidate(ctx, code)
	return updated, nil
}

// Deactivate switches a coupon off so it can no longer be redeemed.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	if err := s.Q.SetCouponStatus(ctx, strings.TrimSpace(code), StatusInactive); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

// ErrInvalidInput wraps admin payload problems.
var ErrInvalidInput = errors.New("invalid coupon")

func buildRule(in Input) (Rule, error) {
	kind := pricing.ParsePromoteType(in.PromoteType)
	if in.Discount < 0 {
		return Rule{}, fmt.Errorf("%w: discount must not be negative", ErrInvalidInput)
	}
	if kind == pricing.PromotePercentage && in.Discount > 100 {
		return Rule{}, fmt.Errorf("%w: percentage discount must be between 0 and 100", ErrInvalidInput)
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		return Rule{}, fmt.Errorf("%w: validTo is before validFrom", ErrInvalidInput)
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = StatusActive
	}
	return Rule{
		Code:        strings.TrimSpace(in.Code),
		Status:      status,
		PromoteType: kind.String(),
		Discount:    in.Discount,
		Description: strings.TrimSpace(in.Description),
		ValidFrom:   in.ValidFrom,
		ValidTo:     in.ValidTo,
	}, nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if err := s.Cache.Delete(ctx, cache.KeyCoupon(code)); err != nil {
		s.Logger.Warn().Err(err).Str("code", code).Msg("coupon cache invalidate")
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
