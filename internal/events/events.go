package events

import (
	"context"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

// Event is the envelope written to the order topic.
type Event struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	OrderID   string         `json:"order_id"`
	Owner     string         `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

// Publisher delivers events. Callers treat delivery as best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

func NewOrderCreated(o domain.Order) Event {
	items := make([]map[string]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.StringFixed(2),
		})
	}
	return newEvent(OrderCreated, o, map[string]any{
		"total":  o.Total.StringFixed(2),
		"status": string(o.Status),
		"items":  items,
	})
}

func NewOrderStatusChanged(o domain.Order, from domain.OrderStatus) Event {
	return newEvent(OrderStatusChanged, o, map[string]any{
		"from": string(from),
		"to":   string(o.Status),
	})
}

func newEvent(kind string, o domain.Order, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      kind,
		OrderID:   o.ID,
		Owner:     o.Owner.String(),
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
