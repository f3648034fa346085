package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuotesTotal counts priced orders by channel and discount source.
	PricingQuotesTotal *prometheus.CounterVec
	// PricingDiscountAmount records the discount granted per quote.
	PricingDiscountAmount *prometheus.HistogramVec
	// CouponLookupsTotal counts coupon lookups by outcome.
	CouponLookupsTotal *prometheus.CounterVec
	// OrdersCreatedTotal counts persisted orders by channel.
	OrdersCreatedTotal *prometheus.CounterVec
	// MembershipAccrualsTotal counts loyalty accrual outcomes.
	MembershipAccrualsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuotesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of priced orders by channel and discount source.",
		}, []string{"channel", "source"}))
		PricingDiscountAmount = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_discount_amount",
			Help:      "Discount granted per quote in currency units.",
			Buckets:   []float64{0, 1000, 5000, 10000, 20000, 50000, 100000, 250000},
		}, []string{"source"}))
		CouponLookupsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_lookups_total",
			Help:      "Count of coupon lookups by outcome.",
		}, []string{"result"}))
		OrdersCreatedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of orders created by channel.",
		}, []string{"channel"}))
		MembershipAccrualsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_accruals_total",
			Help:      "Count of membership spend accruals by outcome.",
		}, []string{"result"}))
	})
}

// RecordQuote observes a priced order. It is a no-op until metrics are registered.
func RecordQuote(channel, source string, discount int64) {
	if PricingQuotesTotal != nil {
		PricingQuotesTotal.WithLabelValues(channel, source).Inc()
	}
	if PricingDiscountAmount != nil {
		PricingDiscountAmount.WithLabelValues(source).Observe(float64(discount))
	}
}

// RecordCouponLookup counts a coupon lookup outcome.
func RecordCouponLookup(result string) {
	if CouponLookupsTotal != nil {
		CouponLookupsTotal.WithLabelValues(result).Inc()
	}
}

// RecordOrderCreated counts a persisted order.
func RecordOrderCreated(channel string) {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.WithLabelValues(channel).Inc()
	}
}

// RecordAccrual counts a membership accrual outcome.
func RecordAccrual(result string) {
	if MembershipAccrualsTotal != nil {
		MembershipAccrualsTotal.WithLabelValues(result).Inc()
	}
}
