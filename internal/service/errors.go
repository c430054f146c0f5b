package service

import (
	"errors"
	"fmt"
)

// Checkout failure taxonomy. Every one of these aborts the whole attempt;
// none are retried inside the service. A caller may retry the full checkout
// after a persistence failure because rollback is guaranteed complete.
var (
	// ErrEmptyCart means there was nothing to check out. Valid state, terminal
	// for the attempt, no side effects.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrOrderNotFound covers both a genuinely missing order and an order
	// owned by a different buyer. Ownership mismatch is deliberately not
	// distinguishable from absence.
	ErrOrderNotFound = errors.New("order not found")

	// ErrReviewNotFound means the review does not exist or is not in the
	// expected active state.
	ErrReviewNotFound = errors.New("review not found")

	// ErrDuplicateReview means the buyer already has an active review for
	// the product.
	ErrDuplicateReview = errors.New("review already exists for this product")

	// ErrNotReviewOwner means the review belongs to a different buyer.
	ErrNotReviewOwner = errors.New("review belongs to another buyer")

	// ErrIdempotencyConflict means the idempotency key was already used by a
	// different buyer. The replay is refused rather than exposing the other
	// buyer's order.
	ErrIdempotencyConflict = errors.New("idempotency key already used by another buyer")
)

// ProductUnavailableError means a cart line references a product that was
// deleted or deactivated between cart-add and checkout.
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is unavailable", e.ProductID)
}

// InvalidProductStateError means a product exists but is missing data the
// checkout needs, such as a usable price. A server-side fault, not something
// the buyer can correct.
type InvalidProductStateError struct {
	ProductID int64
}

func (e *InvalidProductStateError) Error() string {
	return fmt.Sprintf("product %d has no usable price", e.ProductID)
}

// InsufficientStockError means the conditional stock decrement failed. This
// is the designed-for contention outcome, not an infrastructure error: the
// buyer can reduce the quantity or drop the line.
type InsufficientStockError struct {
	ProductID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d", e.ProductID)
}
