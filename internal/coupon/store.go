package coupon

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kopi/internal/db"
)

const couponColumns = `id, code, status, promote_type, discount, description, valid_from, valid_to, created_at, updated_at`

// Store persists coupons in Postgres.
type Store struct {
	DB db.DBTX
}

// NewStore constructs a coupon store.
func NewStore(conn db.DBTX) *Store {
	return &Store{DB: conn}
}

func scanRule(row pgx.Row) (Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.Code, &r.Status, &r.PromoteType, &r.Discount, &r.Description, &r.ValidFrom, &r.ValidTo, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// GetCouponByCode loads a coupon by code, ignoring case.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (Rule, error) {
	rule, err := scanRule(s.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE lower(code) = lower($1)`, code))
	if err != nil {
		if db.IsNoRows(err) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, fmt.Errorf("get coupon: %w", err)
	}
	return rule, nil
}

// ListCoupons returns a page of coupons and the total count.
func (s *Store) ListCoupons(ctx context.Context, limit, offset int) ([]Rule, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	out := make([]Rule, 0, limit)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, rule)
	}
	return out, total, rows.Err()
}

// CreateCoupon inserts a coupon.
func (s *Store) CreateCoupon(ctx context.Context, r Rule) (Rule, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	created, err := scanRule(s.DB.QueryRow(ctx, `
INSERT INTO coupons (id, code, status, promote_type, discount, description, valid_from, valid_to)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+couponColumns,
		r.ID, r.Code, r.Status, r.PromoteType, r.Discount, r.Description, r.ValidFrom, r.ValidTo))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Rule{}, ErrDuplicateCode
		}
		return Rule{}, fmt.Errorf("create coupon: %w", err)
	}
	return created, nil
}

// UpdateCoupon replaces the mutable fields of the coupon identified by code.
func (s *Store) UpdateCoupon(ctx context.Context, code string, r Rule) (Rule, error) {
	updated, err := scanRule(s.DB.QueryRow(ctx, `
UPDATE coupons
SET status = $2, promote_type = $3, discount = $4, description = $5, valid_from = $6, valid_to = $7, updated_at = now()
WHERE lower(code) = lower($1)
RETURNING `+couponColumns,
		code, r.Status, r.PromoteType, r.Discount, r.Description, r.ValidFrom, r.ValidTo))
	if err != nil {
		if db.IsNoRows(err) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, fmt.Errorf("update coupon: %w", err)
	}
	return updated, nil
}

// SetCouponStatus flips the coupon status.
func (s *Store) SetCouponStatus(ctx context.Context, code, status string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE coupons SET status = $2, updated_at = now() WHERE lower(code) = lower($1)`, code, status)
	if err != nil {
		return fmt.Errorf("set coupon status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
