package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory store.Conn that mirrors the Postgres semantics
// the checkout depends on: the conditional stock decrement is atomic per
// call, and everything done inside WithinTx is undone when the function
// returns an error.
type memStore struct {
	mu sync.Mutex

	products    map[int64]*memProduct
	carts       map[int64][]models.CartLine
	orders      map[int64]*models.Order
	ordersByKey map[string]int64

	nextLineID  int64
	nextOrderID int64
	nextItemID  int64

	failInsertOrder bool
}

type memProduct struct {
	id       int64
	name     string
	price    decimal.NullDecimal
	stock    int
	isActive bool
}

func newMemStore() *memStore {
	return &memStore{
		products:    make(map[int64]*memProduct),
		carts:       make(map[int64][]models.CartLine),
		orders:      make(map[int64]*models.Order),
		ordersByKey: make(map[string]int64),
	}
}

var _ store.Conn = (*memStore)(nil)

func (m *memStore) addProduct(id int64, name, price string, stock int, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &memProduct{
		id:       id,
		name:     name,
		price:    decimal.NullDecimal{Decimal: decimal.RequireFromString(price), Valid: true},
		stock:    stock,
		isActive: active,
	}
}

func (m *memStore) addPricelessProduct(id int64, name string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &memProduct{id: id, name: name, stock: stock, isActive: true}
}

func (m *memStore) setPrice(productID int64, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID].price = decimal.NullDecimal{Decimal: decimal.RequireFromString(price), Valid: true}
}

func (m *memStore) addCartLine(buyerID, productID int64, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLineID++
	m.carts[buyerID] = append(m.carts[buyerID], models.CartLine{
		ID:        m.nextLineID,
		BuyerID:   buyerID,
		ProductID: productID,
		Quantity:  qty,
	})
}

func (m *memStore) stock(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].stock
}

func (m *memStore) cartSize(buyerID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts[buyerID])
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type undo func()

type memTx struct {
	s     *memStore
	undos []undo
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx := &memTx{s: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undos) - 1; i >= 0; i-- {
		t.undos[i]()
	}
	t.undos = nil
}

func (t *memTx) CartLines(ctx context.Context, buyerID int64) ([]store.CheckoutLine, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	lines := append([]models.CartLine(nil), t.s.carts[buyerID]...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })

	out := make([]store.CheckoutLine, 0, len(lines))
	for _, line := range lines {
		cl := store.CheckoutLine{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		if p, ok := t.s.products[line.ProductID]; ok {
			cl.ProductName = sql.NullString{String: p.name, Valid: true}
			cl.Price = p.price
			cl.IsActive = sql.NullBool{Bool: p.isActive, Valid: true}
		}
		out = append(out, cl)
	}
	return out, nil
}

func (t *memTx) TryReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	p, ok := t.s.products[productID]
	if !ok || p.stock < quantity {
		return false, nil
	}
	p.stock -= quantity
	t.undos = append(t.undos, func() { p.stock += quantity })
	return true, nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.s.failInsertOrder {
		return errors.New("simulated insert failure")
	}
	if _, taken := t.s.ordersByKey[order.IdempotencyKey]; taken {
		// Mirrors the unique index on orders.idempotency_key.
		return errors.New("duplicate key value violates unique constraint \"orders_idempotency_key_key\"")
	}

	t.s.nextOrderID++
	order.ID = t.s.nextOrderID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		t.s.nextItemID++
		order.Items[i].ID = t.s.nextItemID
		order.Items[i].OrderID = order.ID
	}

	stored := copyOrder(order)
	t.s.orders[order.ID] = stored
	if order.IdempotencyKey != "" {
		t.s.ordersByKey[order.IdempotencyKey] = order.ID
	}

	id := order.ID
	key := order.IdempotencyKey
	t.undos = append(t.undos, func() {
		delete(t.s.orders, id)
		if key != "" {
			delete(t.s.ordersByKey, key)
		}
	})
	return nil
}

func (t *memTx) DeleteCartLines(ctx context.Context, buyerID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	removed := t.s.carts[buyerID]
	delete(t.s.carts, buyerID)
	t.undos = append(t.undos, func() { t.s.carts[buyerID] = removed })
	return nil
}

func (m *memStore) GetOrderWithItems(ctx context.Context, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}

	out := copyOrder(order)
	for i := range out.Items {
		if p, ok := m.products[out.Items[i].ProductID]; ok {
			out.Items[i].Product = &models.Product{
				ID:       p.id,
				Name:     p.name,
				Price:    p.price.Decimal,
				Stock:    p.stock,
				IsActive: p.isActive,
			}
		}
	}
	return out, nil
}

func (m *memStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	orderID, ok := m.ordersByKey[key]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.GetOrderWithItems(ctx, orderID)
}

func (m *memStore) CountOrders(ctx context.Context, buyerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, order := range m.orders {
		if order.BuyerID == buyerID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListOrders(ctx context.Context, buyerID int64, offset, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []models.Order
	for _, order := range m.orders {
		if order.BuyerID == buyerID {
			orders = append(orders, *copyOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	if offset >= len(orders) {
		return []models.Order{}, nil
	}
	end := offset + limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[offset:end], nil
}

func copyOrder(order *models.Order) *models.Order {
	out := *order
	out.Items = append([]models.OrderItem(nil), order.Items...)
	return &out
}
