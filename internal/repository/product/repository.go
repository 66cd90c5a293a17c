package product

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists catalog products.
type Repository interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// GetByIDs returns the products that exist, keyed by id. Unknown ids are
	// silently absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	// Upsert inserts p, or replaces the product with the same id.
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}
