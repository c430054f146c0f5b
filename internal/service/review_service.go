package service

import (
	"context"
	"fmt"
	"math"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// ReviewStore is the persistence surface the review subsystem needs.
// Satisfied by *store.Store.
type ReviewStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetReviewByID(ctx context.Context, reviewID int64, active bool) (*models.Review, error)
	GetActiveReviewByBuyer(ctx context.Context, buyerID, productID int64) (*models.Review, error)
	InsertReview(ctx context.Context, review *models.Review) error
	UpdateReview(ctx context.Context, reviewID int64, grade int, comment string) error
	SetReviewActive(ctx context.Context, reviewID int64, active bool) error
	ActiveRatingAverage(ctx context.Context, productID int64) (float64, error)
	UpdateProductRating(ctx context.Context, productID int64, rating float64) error
}

// ReviewEvents publishes review mutations for the rating worker to pick up.
type ReviewEvents interface {
	PublishReviewChanged(ctx context.Context, event *models.ReviewChangedEvent) error
}

// ReviewService handles product reviews and the rating recompute they
// trigger. Rating updates are eventually consistent with review mutations
// and are never coupled to checkout.
type ReviewService struct {
	store  ReviewStore
	events ReviewEvents
	logger *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(store ReviewStore, events ReviewEvents) *ReviewService {
	return &ReviewService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// CreateReview adds a buyer's review for an active product. One active
// review per buyer and product.
func (s *ReviewService) CreateReview(ctx context.Context, buyerID, productID int64, grade int, comment string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.CreateReview")
	defer span.End()

	existing, err := s.store.GetActiveReviewByBuyer(ctx, buyerID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateReview
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil || !product.IsActive {
		return nil, &ProductUnavailableError{ProductID: productID}
	}

	review := &models.Review{
		BuyerID:   buyerID,
		ProductID: productID,
		Grade:     grade,
		Comment:   comment,
	}
	if err := s.store.InsertReview(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to insert review: %w", err)
	}

	s.publishReviewChanged(ctx, review, "created")
	return review, nil
}

// UpdateReview edits the buyer's own review. A changed grade triggers a
// rating recompute downstream.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, buyerID int64, grade int, comment string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.UpdateReview")
	defer span.End()

	review, err := s.store.GetReviewByID(ctx, reviewID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}
	if review.BuyerID != buyerID {
		return nil, ErrNotReviewOwner
	}

	gradeChanged := review.Grade != grade
	if err := s.store.UpdateReview(ctx, reviewID, grade, comment); err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	review.Grade = grade
	review.Comment = comment

	if gradeChanged {
		s.publishReviewChanged(ctx, review, "updated")
	}
	return review, nil
}

// DeactivateReview soft-deletes the buyer's own review.
func (s *ReviewService) DeactivateReview(ctx context.Context, reviewID, buyerID int64) error {
	ctx, span := util.StartSpan(ctx, "ReviewService.DeactivateReview")
	defer span.End()

	review, err := s.store.GetReviewByID(ctx, reviewID, true)
	if err != nil {
		return fmt.Errorf("failed to load review: %w", err)
	}
	if review == nil {
		return ErrReviewNotFound
	}
	if review.BuyerID != buyerID {
		return ErrNotReviewOwner
	}

	if err := s.store.SetReviewActive(ctx, reviewID, false); err != nil {
		return fmt.Errorf("failed to deactivate review: %w", err)
	}

	s.publishReviewChanged(ctx, review, "deactivated")
	return nil
}

// ReactivateReview restores a soft-deleted review.
func (s *ReviewService) ReactivateReview(ctx context.Context, reviewID int64) error {
	ctx, span := util.StartSpan(ctx, "ReviewService.ReactivateReview")
	defer span.End()

	review, err := s.store.GetReviewByID(ctx, reviewID, false)
	if err != nil {
		return fmt.Errorf("failed to load review: %w", err)
	}
	if review == nil {
		return ErrReviewNotFound
	}

	if err := s.store.SetReviewActive(ctx, reviewID, true); err != nil {
		return fmt.Errorf("failed to reactivate review: %w", err)
	}

	s.publishReviewChanged(ctx, review, "reactivated")
	return nil
}

// RecomputeRating recalculates a product's rating as the mean grade of its
// active reviews, rounded to two decimal places, 0 when there are none.
// A missing or inactive product is skipped, not an error.
func (s *ReviewService) RecomputeRating(ctx context.Context, productID int64) error {
	ctx, span := util.StartSpan(ctx, "ReviewService.RecomputeRating")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil || !product.IsActive {
		return nil
	}

	avg, err := s.store.ActiveRatingAverage(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to compute average grade: %w", err)
	}

	rating := math.Round(avg*100) / 100
	if err := s.store.UpdateProductRating(ctx, productID, rating); err != nil {
		return fmt.Errorf("failed to update product rating: %w", err)
	}

	util.RatingRecomputesTotal.Inc()
	s.logger.Info("Product rating recomputed",
		zap.Int64("product_id", productID),
		zap.Float64("rating", rating))
	return nil
}

func (s *ReviewService) publishReviewChanged(ctx context.Context, review *models.Review, action string) {
	if s.events == nil {
		return
	}

	event := &models.ReviewChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReviewChanged),
		ReviewID:  review.ID,
		ProductID: review.ProductID,
		Action:    action,
	}
	if err := s.events.PublishReviewChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReviewChanged event",
			zap.Int64("review_id", review.ID), zap.Error(err))
	}
}
