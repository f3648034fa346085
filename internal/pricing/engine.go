package pricing

// Item describes a line item used for subtotal calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Input carries everything needed to price one order.
type Input struct {
	Subtotal    Money
	DeliveryFee Money
	Source      DiscountSource
}

// Breakdown reports how the final payable amount was reached.
type Breakdown struct {
	Subtotal            Money  `json:"subtotal"`
	DeliveryFee         Money  `json:"deliveryFee"`
	TotalBeforeDiscount Money  `json:"totalBeforeDiscount"`
	CouponDiscount      Money  `json:"couponDiscount"`
	MembershipDiscount  Money  `json:"membershipDiscount"`
	TotalDiscount       Money  `json:"totalDiscount"`
	FinalTotal          Money  `json:"finalTotal"`
	MembershipSkipped   bool   `json:"isMembershipSkipped"`
	Source              string `json:"discountSource"`
}

// Subtotal sums price times quantity, ignoring non-positive lines.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Calculate applies the selected discount source and the payable floor.
func Calculate(in Input) Breakdown {
	subtotal := nonNegative(in.Subtotal)
	fee := nonNegative(in.DeliveryFee)
	total := subtotal + fee

	out := Breakdown{
		Subtotal:            subtotal,
		DeliveryFee:         fee,
		TotalBeforeDiscount: total,
		Source:              in.Source.String(),
	}

	switch in.Source.kind {
	case sourceCoupon:
		out.CouponDiscount = couponAmount(in.Source.coupon, total)
		out.MembershipSkipped = in.Source.rank != RankNone
	case sourceMembership:
		out.MembershipDiscount = membershipAmount(in.Source.rank, total-out.CouponDiscount)
	}

	out.TotalDiscount = out.CouponDiscount + out.MembershipDiscount
	out.FinalTotal = total - out.TotalDiscount
	if out.FinalTotal < MinimumPayable {
		out.FinalTotal = MinimumPayable
	}
	return out
}

// Quote prices an order from a possibly nil coupon and a raw rank label.
func Quote(subtotal, deliveryFee Money, coupon *Coupon, rankLabel string) Breakdown {
	return Calculate(Input{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Source:      SelectSource(coupon, ParseRank(rankLabel)),
	})
}

func couponAmount(c Coupon, total Money) Money {
	if c.Discount <= 0 {
		return 0
	}
	discount := c.Discount
	if c.PromoteType == PromotePercentage {
		discount = total * c.Discount / 100
	}
	// a coupon alone may not push the order below the payable floor
	ceiling := total - MinimumPayable
	if ceiling < 0 {
		ceiling = 0
	}
	if discount > ceiling {
		discount = ceiling
	}
	return discount
}

func membershipAmount(r Rank, base Money) Money {
	rate, limit, capped := r.Policy()
	if rate <= 0 || base <= 0 {
		return 0
	}
	discount := base * rate / 100
	if capped && discount > limit {
		discount = limit
	}
	return discount
}

func nonNegative(v Money) Money {
	if v < 0 {
		return 0
	}
	return v
}
