package order

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Channel identifies where an order was placed.
const (
	ChannelOnline = "online"
	ChannelPOS    = "pos"
)

var (
	// ErrNotFound is returned when an order does not exist or is not visible to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a status change breaks the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is returned for unrecognised status values.
	ErrUnknownStatus = errors.New("unknown order status")
)

// ParseStatus parses a status value case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCanceled:
		return s, nil
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

func (s Status) step() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPreparing:
		return 1
	case StatusReady:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether an order may move from s to next. Orders move
// forward one or more steps through pending, preparing, ready, completed, and
// any non-terminal order may be canceled.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() || s == next {
		return false
	}
	if next == StatusCanceled {
		return true
	}
	return next.step() > s.step() && s.step() >= 0
}

// Order is a priced and persisted purchase.
type Order struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             *uuid.UUID `json:"userId,omitempty"`
	Channel            string     `json:"channel"`
	Status             Status     `json:"status"`
	CustomerPhone      string     `json:"customerPhone,omitempty"`
	CouponCode         string     `json:"couponCode,omitempty"`
	MembershipRank     string     `json:"membershipRank"`
	Currency           string     `json:"currency"`
	Subtotal           int64      `json:"subtotal"`
	DeliveryFee        int64      `json:"deliveryFee"`
	CouponDiscount     int64      `json:"couponDiscount"`
	MembershipDiscount int64      `json:"membershipDiscount"`
	TotalDiscount      int64      `json:"totalDiscount"`
	FinalTotal         int64      `json:"finalTotal"`
	DeliveryAddress    string     `json:"deliveryAddress,omitempty"`
	TableNumber        string     `json:"tableNumber,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedBy          *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Items              []Item     `json:"items,omitempty"`
}

// Item is a single order line.
type Item struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unitPrice"`
	Qty       int       `json:"qty"`
	Subtotal  int64     `json:"subtotal"`
}
