package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"storefront/internal/domain"
)

const defaultMaxAttempts = 5

// MaxItemQuantity caps a single line so quantity arithmetic cannot overflow.
const MaxItemQuantity = 10000

type cartRepo interface {
	Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
	Save(ctx context.Context, c domain.Cart) (*domain.Cart, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// Service applies cart mutations as compare-and-set writes, retrying when a
// concurrent request for the same owner wins the race.
type Service struct {
	carts       cartRepo
	products    productRepo
	logger      *log.Logger
	now         func() time.Time
	maxAttempts int
}

func New(carts cartRepo, products productRepo, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		carts:       carts,
		products:    products,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
	}
}

// AddItem merges quantity into the owner's cart, creating the cart on first
// use. The cumulative quantity may not exceed the product's stock.
func (s *Service) AddItem(ctx context.Context, owner domain.OwnerKey, productID string, quantity int) (*domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if err := validateItem(productID, quantity); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.mutate(ctx, owner, true, func(c *domain.Cart) (bool, error) {
		if quantity > p.Stock-c.Quantity(productID) {
			return false, domain.ErrInsufficientStock
		}
		c.Add(productID, quantity, s.now())
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Get never creates a cart; an owner without one gets domain.ErrCartNotFound.
func (s *Service) Get(ctx context.Context, owner domain.OwnerKey) (*domain.CartView, error) {
	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// UpdateItem sets the quantity of an item already in the cart.
func (s *Service) UpdateItem(ctx context.Context, owner domain.OwnerKey, productID string, quantity int) (*domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if err := validateItem(productID, quantity); err != nil {
		return nil, err
	}

	c, err := s.mutate(ctx, owner, false, func(c *domain.Cart) (bool, error) {
		if c.Quantity(productID) == 0 {
			return false, domain.ErrItemNotFound
		}
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return false, err
		}
		if quantity > p.Stock {
			return false, domain.ErrInsufficientStock
		}
		return true, c.SetQuantity(productID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// RemoveItem drops productID from the cart. Removing an item that is not in
// the cart succeeds without writing.
func (s *Service) RemoveItem(ctx context.Context, owner domain.OwnerKey, productID string) (*domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.Invalid("productId required")
	}
	c, err := s.mutate(ctx, owner, false, func(c *domain.Cart) (bool, error) {
		return c.Remove(productID), nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Clear empties the cart but keeps it, so a later Get returns an empty cart.
func (s *Service) Clear(ctx context.Context, owner domain.OwnerKey) (*domain.CartView, error) {
	c, err := s.mutate(ctx, owner, false, func(c *domain.Cart) (bool, error) {
		if c.IsEmpty() {
			return false, nil
		}
		c.Clear()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// mutate runs fn against the freshest cart and saves the result with a
// version check. fn reports whether it changed anything; unchanged carts are
// not written.
func (s *Service) mutate(ctx context.Context, owner domain.OwnerKey, create bool, fn func(*domain.Cart) (bool, error)) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.Invalid("cart owner required")
	}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		c, err := s.carts.Get(ctx, owner)
		switch {
		case errors.Is(err, domain.ErrCartNotFound) && create:
			c = domain.NewCart(owner, s.now())
		case err != nil:
			return nil, err
		}

		changed, err := fn(c)
		if err != nil {
			return nil, err
		}
		if !changed {
			return c, nil
		}

		saved, err := s.carts.Save(ctx, *c)
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Printf("cart service: owner=%s version=%d conflict attempt=%d", owner, c.Version, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return saved, nil
	}
	return nil, domain.ErrConflict
}

func (s *Service) view(ctx context.Context, c *domain.Cart) (*domain.CartView, error) {
	products, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, err
	}
	view := domain.NewCartView(*c, products)
	return &view, nil
}

func validateItem(productID string, quantity int) error {
	if productID == "" {
		return domain.Invalid("productId required")
	}
	if quantity < 1 {
		return domain.Invalid("quantity must be at least 1")
	}
	if quantity > MaxItemQuantity {
		return domain.Invalid("quantity must be at most %d", MaxItemQuantity)
	}
	return nil
}
