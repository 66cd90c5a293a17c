package order

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"

	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 5
	maxIdempotencyKey  = 128
	publishTimeout     = 5 * time.Second
)

type orderRepo interface {
	Place(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, owner domain.OwnerKey, key string) (*domain.Order, error)
	ListByOwner(ctx context.Context, owner domain.OwnerKey) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

type cartRepo interface {
	Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
}

type productRepo interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type Options struct {
	// MonotonicStatuses rejects moves back to an earlier status.
	MonotonicStatuses bool
	Publisher         events.Publisher
	Logger            *log.Logger
}

type Service struct {
	orders      orderRepo
	carts       cartRepo
	products    productRepo
	publisher   events.Publisher
	logger      *log.Logger
	monotonic   bool
	maxAttempts int
	newID       func() string
}

func New(orders orderRepo, carts cartRepo, products productRepo, opts Options) *Service {
	s := &Service{
		orders:      orders,
		carts:       carts,
		products:    products,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		monotonic:   opts.MonotonicStatuses,
		maxAttempts: defaultMaxAttempts,
		newID:       uuid.NewString,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

type CreateInput struct {
	ShippingAddress *domain.Address
	// IdempotencyKey makes retries of the same checkout return the first order.
	IdempotencyKey string
}

// Create turns the owner's cart into an order priced at current catalog
// prices and empties the cart in the same placement.
func (s *Service) Create(ctx context.Context, owner domain.OwnerKey, in CreateInput) (*domain.OrderView, error) {
	if !owner.Valid() {
		return nil, domain.Invalid("order owner required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKey {
		return nil, domain.Invalid("idempotency key longer than %d characters", maxIdempotencyKey)
	}
	if in.ShippingAddress != nil {
		if err := in.ShippingAddress.Validate(); err != nil {
			return nil, err
		}
	}

	if key != "" {
		if existing, err := s.orders.GetByIdempotencyKey(ctx, owner, key); err == nil {
			return s.view(ctx, existing)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		o, err := s.build(ctx, owner, in.ShippingAddress, key)
		if err != nil {
			return nil, err
		}

		placed, err := s.orders.Place(ctx, *o)
		switch {
		case errors.Is(err, domain.ErrConflict):
			s.logger.Printf("order service: owner=%s cart version=%d moved, retry attempt=%d", owner, o.CartVersion, attempt)
			continue
		case errors.Is(err, domain.ErrAlreadyExists) && key != "":
			existing, lookupErr := s.orders.GetByIdempotencyKey(ctx, owner, key)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return s.view(ctx, existing)
		case err != nil:
			return nil, err
		}

		s.logger.Printf("order service: created id=%s owner=%s total=%s items=%d", placed.ID, owner, placed.Total.StringFixed(2), len(placed.Items))
		s.publish(ctx, events.NewOrderCreated(*placed))
		return s.view(ctx, placed)
	}
	return nil, domain.ErrConflict
}

func (s *Service) build(ctx context.Context, owner domain.OwnerKey, addr *domain.Address, key string) (*domain.Order, error) {
	c, err := s.carts.Get(ctx, owner)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	products, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, err
	}
	items := make([]domain.OrderItem, 0, len(c.Items))
	for _, item := range c.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, domain.ErrPriceUnavailable
		}
		items = append(items, domain.NewOrderItem(p, item.Quantity))
	}

	return &domain.Order{
		ID:              s.newID(),
		Owner:           owner,
		Items:           items,
		Total:           domain.SumItems(items),
		Status:          domain.OrderStatusPending,
		ShippingAddress: addr,
		CartVersion:     c.Version,
		IdempotencyKey:  key,
	}, nil
}

// UpdateStatus validates status before touching the store, so a rejected
// value never changes the stored order.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*domain.OrderView, error) {
	to, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == to {
			return s.view(ctx, current)
		}
		if s.monotonic && to.Before(current.Status) {
			return nil, domain.ErrInvalidTransition
		}

		updated, err := s.orders.UpdateStatus(ctx, id, current.Status, to)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Printf("order service: id=%s status %s -> %s", id, current.Status, to)
		s.publish(ctx, events.NewOrderStatusChanged(*updated, current.Status))
		return s.view(ctx, updated)
	}
	return nil, domain.ErrConflict
}

func (s *Service) Get(ctx context.Context, id string) (*domain.OrderView, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, o)
}

// GetForOwner hides orders of other owners behind domain.ErrOrderNotFound.
func (s *Service) GetForOwner(ctx context.Context, owner domain.OwnerKey, id string) (*domain.OrderView, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Owner != owner {
		return nil, domain.ErrOrderNotFound
	}
	return s.view(ctx, o)
}

func (s *Service) ListForOwner(ctx context.Context, owner domain.OwnerKey) ([]domain.OrderView, error) {
	orders, err := s.orders.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var ids []string
	for _, o := range orders {
		for _, id := range o.ProductIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, domain.NewOrderView(o, products))
	}
	return views, nil
}

func (s *Service) view(ctx context.Context, o *domain.Order) (*domain.OrderView, error) {
	products, err := s.products.GetByIDs(ctx, o.ProductIDs())
	if err != nil {
		return nil, err
	}
	view := domain.NewOrderView(*o, products)
	return &view, nil
}

// publish never fails the request; the order is already durable.
func (s *Service) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Printf("order service: publish %s order=%s error=%v", e.Type, e.OrderID, err)
	}
}
