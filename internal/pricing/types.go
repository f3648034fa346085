package pricing

import "strings"

// Money represents a monetary value in whole currency units.
type Money = int64

const (
	// MinimumPayable is the smallest amount an order can be charged.
	MinimumPayable Money = 1000
	// MembershipCap limits the discount granted by capped membership ranks.
	MembershipCap Money = 10_000
)

// PromoteType distinguishes percentage coupons from fixed amount coupons.
type PromoteType int

const (
	// PromoteFixed deducts the coupon magnitude as a currency amount.
	PromoteFixed PromoteType = iota
	// PromotePercentage deducts a percentage (0-100) of the order total.
	PromotePercentage
)

// ParsePromoteType maps a promotion label to its type. Unknown labels are
// treated as fixed amount promotions.
func ParsePromoteType(label string) PromoteType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "phần trăm", "percentage", "percent":
		return PromotePercentage
	default:
		return PromoteFixed
	}
}

func (p PromoteType) String() string {
	if p == PromotePercentage {
		return "percentage"
	}
	return "fixed"
}

// Coupon is a validated discount code ready to be priced.
type Coupon struct {
	Code        string      `json:"code"`
	Status      string      `json:"status,omitempty"`
	PromoteType PromoteType `json:"-"`
	Discount    int64       `json:"discount"`
}

// Matches reports whether input refers to this coupon, ignoring case.
func (c Coupon) Matches(input string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Code), strings.TrimSpace(input))
}

// Rank is a customer loyalty tier.
type Rank int

const (
	RankNone Rank = iota
	RankBronze
	RankSilver
	RankGold
	RankDiamond
)

// ParseRank maps either the Vietnamese label or the English slug to a Rank.
// Anything unrecognised yields RankNone.
func ParseRank(label string) Rank {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "kim cương", "diamond":
		return RankDiamond
	case "vàng", "gold":
		return RankGold
	case "bạc", "silver":
		return RankSilver
	case "đồng", "bronze":
		return RankBronze
	default:
		return RankNone
	}
}

func (r Rank) String() string {
	switch r {
	case RankDiamond:
		return "diamond"
	case RankGold:
		return "gold"
	case RankSilver:
		return "silver"
	case RankBronze:
		return "bronze"
	default:
		return "none"
	}
}

// Label returns the display label used by the storefront.
func (r Rank) Label() string {
	switch r {
	case RankDiamond:
		return "Kim cương"
	case RankGold:
		return "Vàng"
	case RankSilver:
		return "Bạc"
	case RankBronze:
		return "Đồng"
	default:
		return ""
	}
}

// Policy returns the discount rate in percent and the optional cap for the rank.
func (r Rank) Policy() (rate int64, limit Money, capped bool) {
	switch r {
	case RankDiamond:
		return 10, 0, false
	case RankGold:
		return 7, MembershipCap, true
	case RankSilver:
		return 5, MembershipCap, true
	case RankBronze:
		return 3, MembershipCap, true
	default:
		return 0, 0, false
	}
}

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceCoupon
	sourceMembership
)

// DiscountSource is the single mechanism allowed to discount an order.
// Build one with NoDiscount, CouponDiscount, MembershipDiscount or SelectSource.
type DiscountSource struct {
	kind   sourceKind
	coupon Coupon
	rank   Rank
}

// NoDiscount prices the order at full value.
func NoDiscount() DiscountSource { return DiscountSource{kind: sourceNone} }

// CouponDiscount applies c. The rank the customer holds is only kept to report
// that their membership discount was skipped.
func CouponDiscount(c Coupon, heldRank Rank) DiscountSource {
	return DiscountSource{kind: sourceCoupon, coupon: c, rank: heldRank}
}

// MembershipDiscount applies the rank discount.
func MembershipDiscount(r Rank) DiscountSource {
	if r == RankNone {
		return NoDiscount()
	}
	return DiscountSource{kind: sourceMembership, rank: r}
}

// SelectSource picks the discount source for an order. A coupon always wins
// over membership, even one that ends up discounting nothing.
func SelectSource(coupon *Coupon, rank Rank) DiscountSource {
	if coupon != nil {
		return CouponDiscount(*coupon, rank)
	}
	return MembershipDiscount(rank)
}

// Coupon returns the coupon carried by the source, if any.
func (s DiscountSource) Coupon() (Coupon, bool) {
	return s.coupon, s.kind == sourceCoupon
}

// Rank returns the membership rank attached to the source.
func (s DiscountSource) Rank() Rank { return s.rank }

func (s DiscountSource) String() string {
	switch s.kind {
	case sourceCoupon:
		return "coupon"
	case sourceMembership:
		return "membership"
	default:
		return "none"
	}
}
