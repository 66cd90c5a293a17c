package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusCompleted OrderStatus = "Completed"
)

var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusShipped:   1,
	OrderStatusCompleted: 2,
}

// ParseOrderStatus accepts only the exact status names.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(s))
	if _, ok := statusRank[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Before reports whether s comes earlier than other in the fulfilment flow.
func (s OrderStatus) Before(other OrderStatus) bool {
	return statusRank[s] < statusRank[other]
}

// Order is an immutable snapshot of a cart at purchase time. Only Status
// changes after creation.
type Order struct {
	ID              string          `json:"id"`
	Owner           OwnerKey        `json:"owner"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress *Address        `json:"shippingAddress,omitempty"`
	CartVersion     int64           `json:"-"`
	IdempotencyKey  string          `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// NewOrderItem captures the product's current price as the unit price.
func NewOrderItem(p Product, quantity int) OrderItem {
	return OrderItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  quantity,
		UnitPrice: p.Price,
		LineTotal: p.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumItems returns Σ quantity × unit price.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// OrderView is an order with the current catalog entry joined per item.
type OrderView struct {
	Order
	Items []OrderItemView `json:"items"`
}

type OrderItemView struct {
	OrderItem
	Product *ProductSummary `json:"product"`
}

func NewOrderView(o Order, products map[string]Product) OrderView {
	view := OrderView{Order: o, Items: make([]OrderItemView, 0, len(o.Items))}
	for _, item := range o.Items {
		line := OrderItemView{OrderItem: item}
		if p, ok := products[item.ProductID]; ok {
			line.Product = p.Summary()
		}
		view.Items = append(view.Items, line)
	}
	return view
}

// ProductIDs lists referenced product ids in item order.
func (o Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
