package worker

import (
	"context"
	"log"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
)

// RatingWorker consumes review events and recomputes product ratings.
// It is the eventually consistent half of the review subsystem: review
// mutations commit first, the rating catches up here.
type RatingWorker struct {
	consumer      *broker.Consumer
	reviewService *service.ReviewService
}

// NewRatingWorker creates a new rating worker
func NewRatingWorker(consumer *broker.Consumer, reviewService *service.ReviewService) *RatingWorker {
	return &RatingWorker{
		consumer:      consumer,
		reviewService: reviewService,
	}
}

// Start starts the worker
func (w *RatingWorker) Start(ctx context.Context) error {
	log.Println("Starting rating worker...")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *RatingWorker) Stop() error {
	log.Println("Stopping rating worker...")
	return w.consumer.Close()
}

func (w *RatingWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	event, ok, err := broker.DecodeReviewChanged(msg)
	if err != nil {
		util.ReviewEventsConsumedTotal.WithLabelValues("decode_error").Inc()
		return err
	}
	if !ok {
		util.ReviewEventsConsumedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := w.reviewService.RecomputeRating(ctx, event.ProductID); err != nil {
		util.ReviewEventsConsumedTotal.WithLabelValues("recompute_error").Inc()
		return err
	}

	util.ReviewEventsConsumedTotal.WithLabelValues("processed").Inc()
	return nil
}
