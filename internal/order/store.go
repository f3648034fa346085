package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kopi/internal/db"
	"github.com/noah-isme/backend-kopi/internal/events"
)

const orderColumns = `id, user_id, channel, status, customer_phone, coupon_code, membership_rank, currency,
subtotal, delivery_fee, coupon_discount, membership_discount, total_discount, final_total,
delivery_address, table_number, notes, created_by, created_at, updated_at`

// TxBeginner starts a transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists orders in Postgres.
type Store struct {
	DB   db.DBTX
	Pool TxBeginner
}

// NewStore constructs an order store over a pool.
func NewStore(pool interface {
	db.DBTX
	TxBeginner
}) *Store {
	return &Store{DB: pool, Pool: pool}
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Channel, &o.Status, &o.CustomerPhone, &o.CouponCode, &o.MembershipRank, &o.Currency,
		&o.Subtotal, &o.DeliveryFee, &o.CouponDiscount, &o.MembershipDiscount, &o.TotalDiscount, &o.FinalTotal,
		&o.DeliveryAddress, &o.TableNumber, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrder inserts the order and its items in a single transaction.
func (s *Store) CreateOrder(ctx context.Context, o Order) (Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	var created Order
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		row, err := scanOrder(tx.QueryRow(ctx, `
INSERT INTO orders (id, user_id, channel, status, customer_phone, coupon_code, membership_rank, currency,
    subtotal, delivery_fee, coupon_discount, membership_discount, total_discount, final_total,
    delivery_address, table_number, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING `+orderColumns,
			o.ID, o.UserID, o.Channel, o.Status, o.CustomerPhone, o.CouponCode, o.MembershipRank, o.Currency,
			o.Subtotal, o.DeliveryFee, o.CouponDiscount, o.MembershipDiscount, o.TotalDiscount, o.FinalTotal,
			o.DeliveryAddress, o.TableNumber, o.Notes, o.CreatedBy))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		batch := &pgx.Batch{}
		for i := range o.Items {
			it := &o.Items[i]
			if it.ID == uuid.Nil {
				it.ID = uuid.New()
			}
			batch.Queue(`INSERT INTO order_items (id, order_id, product_id, name, unit_price, qty, subtotal) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				it.ID, row.ID, it.ProductID, it.Name, it.UnitPrice, it.Qty, it.Subtotal)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		row.Items = o.Items
		created = row
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return created, nil
}

// GetOrder loads an order and its items. A non-nil userID restricts the lookup
// to that customer's orders.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	args := []any{id}
	if userID != nil {
		query += ` AND user_id = $2`
		args = append(args, *userID)
	}
	o, err := scanOrder(s.DB.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT id, product_id, name, unit_price, qty, subtotal FROM order_items WHERE order_id = $1 ORDER BY name`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Qty, &it.Subtotal); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// ListFilter narrows order listings.
type ListFilter struct {
	UserID  *uuid.UUID
	Status  Status
	Channel string
	Limit   int
	Offset  int
}

// ListOrders returns a page of orders without items, newest first, plus the total count.
func (s *Store) ListOrders(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	where := ` WHERE ($1::uuid IS NULL OR user_id = $1) AND ($2 = '' OR status = $2) AND ($3 = '' OR channel = $3)`
	args := []any{f.UserID, string(f.Status), f.Channel}
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := make([]Order, 0, f.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves an order from one status to another and records the
// matching order.* event in the same transaction. It reports
// ErrInvalidTransition when the order is no longer in the expected status.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (Order, events.Event, error) {
	var (
		o  Order
		ev events.Event
	)
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		var err error
		o, err = scanOrder(tx.QueryRow(ctx, `
UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING `+orderColumns, id, from, to))
		if err != nil {
			if db.IsNoRows(err) {
				return ErrInvalidTransition
			}
			return fmt.Errorf("update order status: %w", err)
		}
		ev, err = events.Record(ctx, tx, topicFor(to), o.ID, Payload(o))
		return err
	})
	if err != nil {
		return Order{}, events.Event{}, err
	}
	return o, ev, nil
}
