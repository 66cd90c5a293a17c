package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository stores one cart document per owner.
type Repository interface {
	// Get returns domain.ErrCartNotFound when the owner has no cart.
	Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
	// Save writes c if the stored version still equals c.Version (0 inserts a
	// new cart) and returns the stored cart with its bumped version. A lost
	// race yields domain.ErrConflict.
	Save(ctx context.Context, c domain.Cart) (*domain.Cart, error)
}
