package menu

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kopi/internal/db"
)

const productColumns = `id, name, category, price, image_url, active, created_at, updated_at`

// Store persists menu products in Postgres.
type Store struct {
	DB db.DBTX
}

// NewStore constructs a menu store.
func NewStore(conn db.DBTX) *Store {
	return &Store{DB: conn}
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collect(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListActiveProducts returns every product currently on the menu.
func (s *Store) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collect(rows)
}

// GetProductsByIDs loads the given products regardless of their active flag.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return collect(rows)
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	created, err := scanProduct(s.DB.QueryRow(ctx, `
INSERT INTO products (id, name, category, price, image_url, active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.Price, p.ImageURL, p.Active))
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// UpdateProduct replaces the mutable fields of a product.
func (s *Store) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	updated, err := scanProduct(s.DB.QueryRow(ctx, `
UPDATE products
SET name = $2, category = $3, price = $4, image_url = $5, active = $6, updated_at = now()
WHERE id = $1
RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.Price, p.ImageURL, p.Active))
	if err != nil {
		if db.IsNoRows(err) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}
