package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart holds at most one item per product, in first-insertion order.
// Version is the optimistic concurrency counter; 0 means never persisted.
type Cart struct {
	Owner     OwnerKey   `json:"owner"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// NewCart returns an unpersisted, empty cart for owner.
func NewCart(owner OwnerKey, now time.Time) *Cart {
	return &Cart{Owner: owner, Items: []CartItem{}, CreatedAt: now, UpdatedAt: now}
}

// Add merges quantity into the item for productID, appending a new item when
// the product is not yet in the cart.
func (c *Cart) Add(productID string, quantity int, now time.Time) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity, AddedAt: now})
}

// SetQuantity overwrites the quantity of an existing item.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove drops the item for productID and reports whether anything changed.
func (c *Cart) Remove(productID string) bool {
	kept := c.Items[:0]
	removed := false
	for _, item := range c.Items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// Quantity returns the quantity held for productID, or 0.
func (c *Cart) Quantity(productID string) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs lists referenced product ids in item order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CartView is a cart with product details joined in for display.
type CartView struct {
	Owner     OwnerKey        `json:"owner"`
	Items     []CartItemView  `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CartItemView carries a nil Product when the referenced product is gone.
type CartItemView struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   *ProductSummary `json:"product"`
}

// NewCartView joins products into cart. Missing products are tolerated and
// excluded from the subtotal.
func NewCartView(cart Cart, products map[string]Product) CartView {
	view := CartView{
		Owner:     cart.Owner,
		Items:     make([]CartItemView, 0, len(cart.Items)),
		Subtotal:  decimal.Zero,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		line := CartItemView{ProductID: item.ProductID, Quantity: item.Quantity}
		if p, ok := products[item.ProductID]; ok {
			line.Product = p.Summary()
			view.Subtotal = view.Subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		view.Items = append(view.Items, line)
	}
	return view
}
