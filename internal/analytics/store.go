package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/backend-kopi/internal/db"
)

// Store runs report queries against the orders tables.
type Store struct {
	DB db.DBTX
}

// NewStore constructs an analytics store.
func NewStore(conn db.DBTX) *Store {
	return &Store{DB: conn}
}

// SalesDaily buckets orders by UTC day. Revenue and discounts count completed orders only.
func (s *Store) SalesDaily(ctx context.Context, from, to time.Time, channel string) ([]SalesDay, error) {
	rows, err := s.DB.Query(ctx, `
SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
       count(*),
       count(*) FILTER (WHERE status = 'completed'),
       count(*) FILTER (WHERE status = 'canceled'),
       coalesce(sum(final_total) FILTER (WHERE status = 'completed'), 0),
       coalesce(sum(total_discount) FILTER (WHERE status = 'completed'), 0),
       count(*) FILTER (WHERE status = 'completed' AND coupon_discount > 0),
       count(*) FILTER (WHERE status = 'completed' AND membership_discount > 0)
FROM orders
WHERE created_at >= $1 AND created_at < $2 AND ($3 = '' OR channel = $3)
GROUP BY day
ORDER BY day`, from, to, channel)
	if err != nil {
		return nil, fmt.Errorf("sales daily: %w", err)
	}
	defer rows.Close()
	var out []SalesDay
	for rows.Next() {
		var d SalesDay
		if err := rows.Scan(&d.Day, &d.Orders, &d.CompletedOrders, &d.CanceledOrders, &d.Revenue, &d.Discounts, &d.CouponOrders, &d.MembershipOrders); err != nil {
			return nil, fmt.Errorf("scan sales day: %w", err)
		}
		d.Day = d.Day.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopProducts ranks order items of completed orders by quantity.
func (s *Store) TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]TopProduct, error) {
	rows, err := s.DB.Query(ctx, `
SELECT oi.product_id::text, max(oi.name), sum(oi.qty)::bigint, sum(oi.subtotal)::bigint
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status = 'completed' AND o.created_at >= $1 AND o.created_at < $2
GROUP BY oi.product_id
ORDER BY sum(oi.qty) DESC, max(oi.name)
LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()
	out := make([]TopProduct, 0, limit)
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Qty, &p.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
