package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	orders  *Producer
	reviews *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, reviews *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, reviews: reviews}
}

// PublishOrderCreated publishes an OrderCreated event, keyed by order so all
// events for one order land on the same partition.
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishReviewChanged publishes a ReviewChanged event, keyed by product so
// recomputes for one product stay ordered.
func (ep *EventPublisher) PublishReviewChanged(ctx context.Context, event *models.ReviewChangedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.reviews.PublishEvent(ctx, key, event)
}

// DecodeReviewChanged parses a review event from a Kafka message, reporting
// whether the message was of the expected type at all.
func DecodeReviewChanged(msg kafka.Message) (*models.ReviewChangedEvent, bool, error) {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	if base.EventType != models.EventTypeReviewChanged {
		return nil, false, nil
	}

	var event models.ReviewChangedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal ReviewChanged event: %w", err)
	}
	return &event, true, nil
}
