package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/cache"
)

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable is returned when an ordered product is missing or inactive.
	ErrUnavailable = errors.New("product unavailable")
)

// Product is a drink or food item on the menu.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     int64     `json:"price"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the admin payload for creating or updating a product.
type Input struct {
	Name     string `json:"name" validate:"required,max=120"`
	Category string `json:"category" validate:"max=60"`
	Price    int64  `json:"price" validate:"gte=0"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
	Active   *bool  `json:"active"`
}

// Querier captures the persistence methods required by the menu service.
type Querier interface {
	ListActiveProducts(ctx context.Context) ([]Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
}

// Service serves the menu and resolves authoritative prices for checkout.
type Service struct {
	Q      Querier
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// List returns the active menu, optionally filtered by category.
func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	var products []Product
	found, err := s.Cache.Get(ctx, cache.KeyMenu, &products)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("menu cache read")
	}
	if !found {
		products, err = s.Q.ListActiveProducts(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Cache.Set(ctx, cache.KeyMenu, products); err != nil {
			s.Logger.Warn().Err(err).Msg("menu cache write")
		}
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return products, nil
	}
	filtered := make([]Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	key := cache.KeyProduct(id.String())
	var p Product
	if found, err := s.Cache.Get(ctx, key, &p); err == nil && found {
		return p, nil
	}
	rows, err := s.Q.GetProductsByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return Product{}, err
	}
	if len(rows) == 0 {
		return Product{}, ErrNotFound
	}
	if err := s.Cache.Set(ctx, key, rows[0]); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("product cache write")
	}
	return rows[0], nil
}

// Prices returns the active products for ids keyed by id. Any missing or
// inactive product fails the whole lookup with ErrUnavailable.
func (s *Service) Prices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	rows, err := s.Q.GetProductsByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]Product, len(rows))
	for _, p := range rows {
		if p.Active {
			out[p.ID] = p
		}
	}
	for _, id := range unique {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, id)
		}
	}
	return out, nil
}

// Create adds a product to the menu.
func (s *Service) Create(ctx context.Context, in Input) (Product, error) {
	created, err := s.Q.CreateProduct(ctx, fromInput(uuid.Nil, in))
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, created.ID)
	return created, nil
}

// Update replaces a product's details.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Product, error) {
	updated, err := s.Q.UpdateProduct(ctx, fromInput(id, in))
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func fromInput(id uuid.UUID, in Input) Product {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return Product{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		Price:    in.Price,
		ImageURL: strings.TrimSpace(in.ImageURL),
		Active:   active,
	}
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.Cache.Delete(ctx, cache.KeyMenu, cache.KeyProduct(id.String())); err != nil {
		s.Logger.Warn().Err(err).Msg("menu cache invalidate")
	}
}
