package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kopi/internal/db"
)

const customerColumns = `id, phone, name, rank, total_spent, created_at, updated_at`

// TxBeginner starts a transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists loyalty customers in Postgres.
type Store struct {
	DB   db.DBTX
	Pool TxBeginner
}

// NewStore constructs a customer store over a pool.
func NewStore(pool interface {
	db.DBTX
	TxBeginner
}) *Store {
	return &Store{DB: pool, Pool: pool}
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Rank, &c.TotalSpent, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCustomerByPhone loads a customer by normalised phone number.
func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	c, err := scanCustomer(s.DB.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
	if err != nil {
		if db.IsNoRows(err) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns a page of customers ordered by spend.
func (s *Store) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY total_spent DESC, created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	out := make([]Customer, 0, limit)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// UpsertCustomer creates a customer or refreshes the name of an existing one.
func (s *Store) UpsertCustomer(ctx context.Context, phone, name string) (Customer, error) {
	c, err := scanCustomer(s.DB.QueryRow(ctx, `
INSERT INTO customers (id, phone, name)
VALUES ($1, $2, $3)
ON CONFLICT (phone) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name), updated_at = now()
RETURNING `+customerColumns, uuid.New(), phone, name))
	if err != nil {
		return Customer{}, fmt.Errorf("upsert customer: %w", err)
	}
	return c, nil
}

// SetCustomerRank overrides the stored rank.
func (s *Store) SetCustomerRank(ctx context.Context, phone, rank string) (Customer, error) {
	c, err := scanCustomer(s.DB.QueryRow(ctx, `UPDATE customers SET rank = $2, updated_at = now() WHERE phone = $1 RETURNING `+customerColumns, phone, rank))
	if err != nil {
		if db.IsNoRows(err) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("set customer rank: %w", err)
	}
	return c, nil
}

// AccrueOrder credits one order to the customer's spend and promotes the rank
// in a single transaction. The order id is recorded in membership_accruals, so
// a replayed order leaves the customer untouched and reports Applied false.
func (s *Store) AccrueOrder(ctx context.Context, orderID uuid.UUID, phone string, amount int64) (Accrual, error) {
	var out Accrual
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
INSERT INTO membership_accruals (order_id, phone, amount)
VALUES ($1, $2, $3)
ON CONFLICT (order_id) DO NOTHING`, orderID, phone, amount)
		if err != nil {
			return fmt.Errorf("record accrual: %w", err)
		}
		if tag.RowsAffected() == 0 {
			c, err := scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
			if err != nil && !db.IsNoRows(err) {
				return fmt.Errorf("get customer: %w", err)
			}
			out = Accrual{Customer: c}
			return nil
		}

		c, err := scanCustomer(tx.QueryRow(ctx, `
INSERT INTO customers (id, phone, total_spent)
VALUES ($1, $2, $3)
ON CONFLICT (phone) DO UPDATE SET total_spent = customers.total_spent + EXCLUDED.total_spent, updated_at = now()
RETURNING `+customerColumns, uuid.New(), phone, amount))
		if err != nil {
			return fmt.Errorf("add spend: %w", err)
		}
		out = Accrual{Customer: c, Applied: true}

		earned := RankForSpend(c.TotalSpent)
		if earned <= c.RankValue() {
			return nil
		}
		c, err = scanCustomer(tx.QueryRow(ctx, `UPDATE customers SET rank = $2, updated_at = now() WHERE phone = $1 RETURNING `+customerColumns, phone, earned.String()))
		if err != nil {
			return fmt.Errorf("promote customer: %w", err)
		}
		out.Customer = c
		out.Promoted = true
		return nil
	})
	if err != nil {
		return Accrual{}, err
	}
	return out, nil
}
