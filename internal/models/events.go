package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated  = "order.created"
	EventTypeReviewChanged = "review.changed"
)

// BaseEvent contains fields common to all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event envelope of the given type.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// OrderItemData is the event-payload shape of an order line
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is published after a checkout commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	BuyerID     int64           `json:"buyer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// ReviewChangedEvent is published by the review subsystem whenever a
// mutation may change a product's effective average grade. The rating
// worker consumes it and recomputes the rating.
type ReviewChangedEvent struct {
	BaseEvent
	ReviewID  int64  `json:"review_id"`
	ProductID int64  `json:"product_id"`
	Action    string `json:"action"` // created | updated | deactivated | reactivated
}
