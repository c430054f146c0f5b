package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderEvents publishes domain events emitted by a committed checkout.
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
}

// OrderCache is a read-side cache for immutable orders plus the idempotency
// fast path. All methods are best effort; a miss or failure falls through to
// the database.
type OrderCache interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, bool)
	SetOrder(ctx context.Context, order *models.Order)
	GetIdempotentOrderID(ctx context.Context, key string) (int64, bool)
	SetIdempotentOrderID(ctx context.Context, key string, orderID int64)
}

// CheckoutService drives the cart-to-order transition and serves order
// retrieval for buyers.
type CheckoutService struct {
	store  store.Conn
	cache  OrderCache
	events OrderEvents
	logger *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(conn store.Conn, cache OrderCache, events OrderEvents) *CheckoutService {
	return &CheckoutService{
		store:  conn,
		cache:  cache,
		events: events,
		logger: util.GetLogger(),
	}
}

// CreateOrder checks out the buyer's whole cart as one transaction: read the
// cart, reserve stock per line, snapshot prices into order items, persist the
// order and clear the cart. Any failure rolls the entire attempt back; there
// is no partial order and no reservation survives an abort.
//
// idempotencyKey may be empty. When set, a repeat of an already-committed
// checkout by the same buyer returns the existing order instead of running
// again; a key already used by another buyer is rejected with
// ErrIdempotencyConflict. An empty key gets a generated one so the unique
// column on orders never collides between unkeyed checkouts.
func (s *CheckoutService) CreateOrder(ctx context.Context, buyerID int64, idempotencyKey string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	} else {
		if existing, err := s.findExistingOrder(ctx, idempotencyKey); err != nil {
			return nil, err
		} else if existing != nil {
			if existing.BuyerID != buyerID {
				s.logger.Warn("Idempotency key replay from a different buyer",
					zap.String("idempotency_key", idempotencyKey),
					zap.Int64("buyer_id", buyerID),
					zap.Int64("owner_id", existing.BuyerID))
				return nil, ErrIdempotencyConflict
			}
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	order := &models.Order{
		BuyerID:        buyerID,
		Status:         models.OrderStatusPending,
		TotalAmount:    decimal.Zero,
		IdempotencyKey: idempotencyKey,
	}

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		lines, err := tx.CartLines(ctx, buyerID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		for _, line := range lines {
			if line.ProductMissing() || !line.IsActive.Bool {
				return &ProductUnavailableError{ProductID: line.ProductID}
			}
			if !line.Price.Valid {
				return &InvalidProductStateError{ProductID: line.ProductID}
			}

			reserved, err := tx.TryReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !reserved {
				return &InsufficientStockError{ProductID: line.ProductID}
			}

			unitPrice := line.Price.Decimal
			totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			order.Items = append(order.Items, models.OrderItem{
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitPrice:  unitPrice,
				TotalPrice: totalPrice,
			})
			order.TotalAmount = order.TotalAmount.Add(totalPrice)
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return tx.DeleteCartLines(ctx, buyerID)
	})
	if err != nil {
		reason := failureReason(err)
		if reason == "insufficient_stock" {
			util.StockReservationsFailed.Inc()
		}
		util.CheckoutsFailedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	util.CheckoutsCompletedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", buyerID),
		zap.String("total_amount", order.TotalAmount.String()))

	s.publishOrderCreated(ctx, order)

	created, err := s.store.GetOrderWithItems(ctx, order.ID)
	if err != nil || created == nil {
		// The order is durably committed; failing the reload is a read
		// problem, not a checkout failure.
		s.logger.Error("Order committed but could not be reloaded",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return order, nil
	}

	if s.cache != nil {
		s.cache.SetOrder(ctx, created)
		s.cache.SetIdempotentOrderID(ctx, idempotencyKey, created.ID)
	}
	return created, nil
}

// GetOrder retrieves an order for display, items and referenced products
// included. A buyer can only see their own orders; an ownership mismatch is
// reported as not found, indistinguishable from a missing order.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID, buyerID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.GetOrder")
	defer span.End()

	if s.cache != nil {
		if order, ok := s.cache.GetOrder(ctx, orderID); ok {
			if order.BuyerID != buyerID {
				return nil, ErrOrderNotFound
			}
			return order, nil
		}
	}

	order, err := s.store.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil || order.BuyerID != buyerID {
		return nil, ErrOrderNotFound
	}

	if s.cache != nil {
		s.cache.SetOrder(ctx, order)
	}
	return order, nil
}

// ListOrders returns one newest-first page of the buyer's orders together
// with the total count for pagination. Page starts at 1; pageSize is clamped
// to [1,100].
func (s *CheckoutService) ListOrders(ctx context.Context, buyerID int64, page, pageSize int) (*models.OrderPage, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ListOrders")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	total, err := s.store.CountOrders(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	orders, err := s.store.ListOrders(ctx, buyerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &models.OrderPage{
		Items:    orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// findExistingOrder resolves an idempotency key to its order, trying the
// cache before the database.
func (s *CheckoutService) findExistingOrder(ctx context.Context, key string) (*models.Order, error) {
	if s.cache != nil {
		if orderID, ok := s.cache.GetIdempotentOrderID(ctx, key); ok {
			if order, err := s.store.GetOrderWithItems(ctx, orderID); err == nil && order != nil {
				return order, nil
			}
		}
	}

	order, err := s.store.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	return order, nil
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// failureReason maps a checkout error to its metrics label.
func failureReason(err error) string {
	var unavailable *ProductUnavailableError
	var invalid *InvalidProductStateError
	var stock *InsufficientStockError

	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &unavailable):
		return "product_unavailable"
	case errors.As(err, &invalid):
		return "invalid_product_state"
	case errors.As(err, &stock):
		return "insufficient_stock"
	default:
		return "persistence_failure"
	}
}
