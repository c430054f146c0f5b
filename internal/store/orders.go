package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetOrderWithItems retrieves an order with its items and the referenced
// products eagerly loaded. Returns nil when the order does not exist.
func (s *Store) GetOrderWithItems(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1`, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key.
// Returns nil when no order carries the key.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE idempotency_key = $1`, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// CountOrders counts all orders belonging to a buyer.
func (s *Store) CountOrders(ctx context.Context, buyerID int64) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM orders WHERE buyer_id = $1`, buyerID)
	return total, err
}

// ListOrders retrieves one page of a buyer's orders, newest first, with
// items and products eagerly loaded. The id tiebreaker keeps the order
// stable when two orders share a creation timestamp.
func (s *Store) ListOrders(ctx context.Context, buyerID int64, offset, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, buyerID, offset, limit)
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems batch-loads order items and their referenced products for a
// set of orders, then fans them out onto the owning orders.
func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	query, args, err := sqlx.In(`SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id`, orderIDs)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	productIDs := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}

	products, err := s.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	productsByID := make(map[int64]*models.Product, len(products))
	for i := range products {
		productsByID[products[i].ID] = &products[i]
	}

	itemsByOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		item.Product = productsByID[item.ProductID]
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}

	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
	}
	return nil
}
