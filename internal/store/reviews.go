package store

import (
	"context"
	"database/sql"

	"marketplace-service/internal/models"
)

// GetReviewByID retrieves a review by ID, filtered on its active flag.
func (s *Store) GetReviewByID(ctx context.Context, reviewID int64, active bool) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review,
		`SELECT * FROM reviews WHERE id = $1 AND is_active = $2`, reviewID, active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// GetActiveReviewByBuyer retrieves the buyer's active review for a product,
// if one exists.
func (s *Store) GetActiveReviewByBuyer(ctx context.Context, buyerID, productID int64) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review, `
		SELECT * FROM reviews
		WHERE buyer_id = $1 AND product_id = $2 AND is_active = TRUE`, buyerID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// InsertReview persists a new review.
func (s *Store) InsertReview(ctx context.Context, review *models.Review) error {
	return s.db.GetContext(ctx, review, `
		INSERT INTO reviews (buyer_id, product_id, grade, comment, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at, updated_at`,
		review.BuyerID, review.ProductID, review.Grade, review.Comment)
}

// UpdateReview updates the grade and comment of a review.
func (s *Store) UpdateReview(ctx context.Context, reviewID int64, grade int, comment string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET grade = $1, comment = $2, updated_at = NOW()
		WHERE id = $3`, grade, comment, reviewID)
	return err
}

// SetReviewActive flips the soft-delete flag on a review.
func (s *Store) SetReviewActive(ctx context.Context, reviewID int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET is_active = $1, updated_at = NOW()
		WHERE id = $2`, active, reviewID)
	return err
}

// ActiveRatingAverage computes the mean grade across a product's active
// reviews, 0 when there are none.
func (s *Store) ActiveRatingAverage(ctx context.Context, productID int64) (float64, error) {
	var avg float64
	err := s.db.GetContext(ctx, &avg, `
		SELECT COALESCE(AVG(grade), 0) FROM reviews
		WHERE product_id = $1 AND is_active = TRUE`, productID)
	return avg, err
}

// UpdateProductRating writes a recomputed rating onto an active product.
func (s *Store) UpdateProductRating(ctx context.Context, productID int64, rating float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products SET rating = $1, updated_at = NOW()
		WHERE id = $2 AND is_active = TRUE`, rating, productID)
	return err
}
