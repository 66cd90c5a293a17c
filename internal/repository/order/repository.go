package order

import (
	"context"
	"slices"
	"strings"

	"storefront/internal/domain"
)

// Repository persists orders.
type Repository interface {
	// Place decrements stock for every item, stores o and empties the cart
	// version o was built from. Errors: domain.ErrInsufficientStock,
	// domain.ErrPriceUnavailable (product vanished), domain.ErrAlreadyExists
	// (idempotency key reused), domain.ErrConflict (cart changed underneath).
	Place(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, owner domain.OwnerKey, key string) (*domain.Order, error)
	ListByOwner(ctx context.Context, owner domain.OwnerKey) ([]domain.Order, error)
	// UpdateStatus moves the order from status "from" to "to". It returns
	// domain.ErrConflict when the stored status is no longer "from".
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

// byProductID returns a copy of items sorted by product id.
func byProductID(items []domain.OrderItem) []domain.OrderItem {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b domain.OrderItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}
