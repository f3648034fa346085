package pricing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func percentCoupon(v int64) *Coupon {
	return &Coupon{Code: "SALE", Status: "active", PromoteType: PromotePercentage, Discount: v}
}

func fixedCoupon(v int64) *Coupon {
	return &Coupon{Code: "FLAT", Status: "active", PromoteType: PromoteFixed, Discount: v}
}

func TestQuoteWorkedExamples(t *testing.T) {
	cases := []struct {
		name       string
		subtotal   Money
		fee        Money
		coupon     *Coupon
		rank       string
		couponOff  Money
		membership Money
		final      Money
		skipped    bool
	}{
		{name: "percentage coupon", subtotal: 100_000, coupon: percentCoupon(10), couponOff: 10_000, final: 90_000},
		{name: "fixed coupon clamped to floor", subtotal: 2_000, coupon: fixedCoupon(5_000), couponOff: 1_000, final: 1_000},
		{name: "gold under cap", subtotal: 100_000, rank: "Vàng", membership: 7_000, final: 93_000},
		{name: "gold capped", subtotal: 1_000_000, rank: "gold", membership: 10_000, final: 990_000},
		{name: "diamond uncapped", subtotal: 1_000_000, rank: "Kim cương", membership: 100_000, final: 900_000},
		{name: "silver", subtotal: 100_000, fee: 20_000, rank: "Bạc", membership: 6_000, final: 114_000},
		{name: "bronze floors fraction", subtotal: 33_333, rank: "Đồng", membership: 999, final: 32_334},
		{name: "coupon suppresses rank", subtotal: 100_000, coupon: percentCoupon(10), rank: "Kim cương", couponOff: 10_000, final: 90_000, skipped: true},
		{name: "zero coupon still suppresses rank", subtotal: 100_000, coupon: percentCoupon(0), rank: "gold", final: 100_000, skipped: true},
		{name: "unknown rank", subtotal: 100_000, rank: "Bạch kim", final: 100_000},
		{name: "unknown rank with coupon is not skipped", subtotal: 100_000, coupon: percentCoupon(10), rank: "Bạch kim", couponOff: 10_000, final: 90_000},
		{name: "tiny order raised to floor", subtotal: 500, final: 1_000},
		{name: "percentage includes delivery fee", subtotal: 80_000, fee: 20_000, coupon: percentCoupon(15), couponOff: 15_000, final: 85_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Quote(tc.subtotal, tc.fee, tc.coupon, tc.rank)
			require.Equal(t, tc.couponOff, got.CouponDiscount, "coupon discount")
			require.Equal(t, tc.membership, got.MembershipDiscount, "membership discount")
			require.Equal(t, tc.final, got.FinalTotal, "final total")
			require.Equal(t, tc.skipped, got.MembershipSkipped, "membership skipped")
			require.Equal(t, got.CouponDiscount+got.MembershipDiscount, got.TotalDiscount)
			require.Equal(t, tc.subtotal+tc.fee, got.TotalBeforeDiscount)
		})
	}
}

func TestCalculateInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ranks := []Rank{RankNone, RankBronze, RankSilver, RankGold, RankDiamond}
	for i := 0; i < 5_000; i++ {
		subtotal := rng.Int63n(3_000_000)
		fee := rng.Int63n(50_000)
		rank := ranks[rng.Intn(len(ranks))]
		var coupon *Coupon
		switch rng.Intn(3) {
		case 1:
			coupon = percentCoupon(rng.Int63n(101))
		case 2:
			coupon = fixedCoupon(rng.Int63n(200_000))
		}
		out := Calculate(Input{Subtotal: subtotal, DeliveryFee: fee, Source: SelectSource(coupon, rank)})

		require.GreaterOrEqual(t, out.FinalTotal, Money(MinimumPayable))
		if coupon != nil {
			require.Zero(t, out.MembershipDiscount, "membership applied alongside coupon: %+v", out)
		}
		require.False(t, out.CouponDiscount > 0 && out.MembershipDiscount > 0, "both sources contributed: %+v", out)
		if coupon == nil && rank == RankNone {
			require.Equal(t, max(subtotal+fee, MinimumPayable), out.FinalTotal)
			require.Zero(t, out.TotalDiscount)
		}
		if net := out.TotalBeforeDiscount - out.TotalDiscount; net >= MinimumPayable {
			require.Equal(t, net, out.FinalTotal, "breakdown %+v", out)
		}
	}
}

func TestCalculateNormalisesNegativeInputs(t *testing.T) {
	out := Calculate(Input{Subtotal: -5_000, DeliveryFee: -1, Source: NoDiscount()})
	require.Zero(t, out.Subtotal)
	require.Zero(t, out.DeliveryFee)
	require.Equal(t, Money(MinimumPayable), out.FinalTotal)
}

func TestNegativeCouponMagnitudeDiscountsNothing(t *testing.T) {
	out := Quote(50_000, 0, fixedCoupon(-10_000), "")
	require.Zero(t, out.CouponDiscount)
	require.Equal(t, Money(50_000), out.FinalTotal)
}

func TestSubtotalSkipsInvalidLines(t *testing.T) {
	got := Subtotal([]Item{{Qty: 2, UnitPrice: 35_000}, {Qty: 0, UnitPrice: 10_000}, {Qty: 1, UnitPrice: -5}, {Qty: 3, UnitPrice: 29_000}})
	require.Equal(t, Money(157_000), got)
}
