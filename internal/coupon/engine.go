package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kopi/internal/pricing"
)

var (
	// ErrNotFound is returned when no coupon matches the supplied code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.New("coupon not active")
	// ErrNotStarted is returned when the coupon validity window has not opened yet.
	ErrNotStarted = errors.New("coupon not yet valid")
	// ErrExpired is returned when the coupon has already expired.
	ErrExpired = errors.New("coupon expired")
	// ErrDuplicateCode is returned when creating a coupon whose code is taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Rule is a stored coupon together with its eligibility window.
type Rule struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	PromoteType string     `json:"promoteType"`
	Discount    int64      `json:"discount"`
	Description string     `json:"description"`
	ValidFrom   *time.Time `json:"validFrom,omitempty"`
	ValidTo     *time.Time `json:"validTo,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Validate ensures the coupon may be redeemed at the provided instant.
func (r Rule) Validate(now time.Time) error {
	if !strings.EqualFold(strings.TrimSpace(r.Status), StatusActive) {
		return ErrInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrNotStarted
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	return nil
}

// Coupon converts the rule to the calculator's coupon value.
func (r Rule) Coupon() pricing.Coupon {
	return pricing.Coupon{
		Code:        r.Code,
		Status:      r.Status,
		PromoteType: pricing.ParsePromoteType(r.PromoteType),
		Discount:    r.Discount,
	}
}
