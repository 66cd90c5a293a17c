// Package memory implements every repository over process-local maps. It backs
// the "memory" store driver and the service tests; a single mutex gives it the
// same all-or-nothing order placement as the Postgres adapter.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	userrepo "storefront/internal/repository/user"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	carts    map[string]domain.Cart
	orders   map[string]domain.Order
	order    []string
	users    map[string]domain.User
	now      func() time.Time
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		carts:    make(map[string]domain.Cart),
		orders:   make(map[string]domain.Order),
		users:    make(map[string]domain.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Products() productrepo.Repository { return productStore{s} }

func (s *Store) Carts() cartrepo.Repository { return cartStore{s} }

func (s *Store) Orders() orderrepo.Repository { return orderStore{s} }

func (s *Store) Users() userrepo.Repository { return userStore{s} }

// Ping always succeeds; it lets the store back the readiness probe.
func (s *Store) Ping(context.Context) error { return nil }

type productStore struct{ s *Store }

func (r productStore) List(_ context.Context, category string) ([]domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Product{}
	for _, p := range r.s.products {
		if category == "" || p.Category == category {
			out = append(out, copyProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r productStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p = copyProduct(p)
	return &p, nil
}

func (r productStore) GetByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out[id] = copyProduct(p)
		}
	}
	return out, nil
}

func (r productStore) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = ""
	return r.Upsert(ctx, p)
}

func (r productStore) Update(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.products[p.ID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.s.now()
	p = copyProduct(p)
	r.s.products[p.ID] = p
	return &p, nil
}

func (r productStore) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now
	if existing, ok := r.s.products[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = now
	p = copyProduct(p)
	r.s.products[p.ID] = p
	return &p, nil
}

func (r productStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.s.products, id)
	return nil
}

type cartStore struct{ s *Store }

func (r cartStore) Get(_ context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[owner.String()]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	c = copyCart(c)
	return &c, nil
}

func (r cartStore) Save(_ context.Context, c domain.Cart) (*domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := c.Owner.String()
	stored, exists := r.s.carts[key]
	switch {
	case c.Version == 0 && exists:
		return nil, domain.ErrConflict
	case c.Version != 0 && (!exists || stored.Version != c.Version):
		return nil, domain.ErrConflict
	}
	now := r.s.now()
	if !exists {
		c.CreatedAt = now
	}
	c.Version++
	c.UpdatedAt = now
	c = copyCart(c)
	r.s.carts[key] = c
	return &c, nil
}

type orderStore struct{ s *Store }

func (r orderStore) Place(_ context.Context, o domain.Order) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, item := range o.Items {
		p, ok := r.s.products[item.ProductID]
		if !ok {
			return nil, domain.ErrPriceUnavailable
		}
		if p.Stock < item.Quantity {
			return nil, domain.ErrInsufficientStock
		}
	}
	if _, exists := r.s.orders[o.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	if o.IdempotencyKey != "" {
		for _, existing := range r.s.orders {
			if existing.Owner == o.Owner && existing.IdempotencyKey == o.IdempotencyKey {
				return nil, domain.ErrAlreadyExists
			}
		}
	}
	c, ok := r.s.carts[o.Owner.String()]
	if !ok || c.Version != o.CartVersion {
		return nil, domain.ErrConflict
	}

	now := r.s.now()
	for _, item := range o.Items {
		p := r.s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = now
		r.s.products[p.ID] = p
	}
	c.Items = []domain.CartItem{}
	c.Version++
	c.UpdatedAt = now
	r.s.carts[o.Owner.String()] = c

	o.CreatedAt, o.UpdatedAt = now, now
	o = copyOrder(o)
	r.s.orders[o.ID] = o
	r.s.order = append(r.s.order, o.ID)
	return &o, nil
}

func (r orderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r orderStore) GetByIdempotencyKey(_ context.Context, owner domain.OwnerKey, key string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.Owner == owner && o.IdempotencyKey == key && key != "" {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

// ListByOwner returns newest first.
func (r orderStore) ListByOwner(_ context.Context, owner domain.OwnerKey) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Order{}
	for i := len(r.s.order) - 1; i >= 0; i-- {
		if o := r.s.orders[r.s.order[i]]; o.Owner == owner {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

func (r orderStore) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, domain.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = r.s.now()
	r.s.orders[id] = o
	o = copyOrder(o)
	return &o, nil
}

type userStore struct{ s *Store }

func (r userStore) Create(_ context.Context, u domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, domain.ErrAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.s.now()
	if u.Addresses == nil {
		u.Addresses = []domain.Address{}
	}
	u = copyUser(u)
	r.s.users[u.ID] = u
	return &u, nil
}

func (r userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u = copyUser(u)
	return &u, nil
}

func copyProduct(p domain.Product) domain.Product {
	p.Images = append([]string{}, p.Images...)
	return p
}

func copyCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.CartItem{}, c.Items...)
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem{}, o.Items...)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		o.ShippingAddress = &addr
	}
	return o
}

func copyUser(u domain.User) domain.User {
	u.Addresses = append([]domain.Address{}, u.Addresses...)
	return u
}
