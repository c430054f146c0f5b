package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Conn is the persistence contract the checkout and order services depend on.
// *Store is the Postgres implementation; tests substitute an in-memory fake.
type Conn interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrderWithItems(ctx context.Context, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, buyerID int64, offset, limit int) ([]models.Order, error)
	CountOrders(ctx context.Context, buyerID int64) (int, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

// Tx is the transaction-scoped surface of a single checkout attempt. Every
// mutation made through it commits or rolls back as one unit.
type Tx interface {
	CartLines(ctx context.Context, buyerID int64) ([]CheckoutLine, error)
	TryReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	DeleteCartLines(ctx context.Context, buyerID int64) error
}

// CheckoutLine is a cart line with its product state resolved at read time.
// Product columns are nullable so a line whose product vanished is still
// observable rather than silently dropped by the join.
type CheckoutLine struct {
	LineID      int64               `db:"line_id"`
	ProductID   int64               `db:"product_id"`
	Quantity    int                 `db:"quantity"`
	ProductName sql.NullString      `db:"product_name"`
	Price       decimal.NullDecimal `db:"price"`
	IsActive    sql.NullBool        `db:"is_active"`
}

// ProductMissing reports whether the referenced product row no longer exists.
func (l CheckoutLine) ProductMissing() bool { return !l.IsActive.Valid }

type Store struct {
	db *sqlx.DB
}

var _ Conn = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithinTx runs fn inside one database transaction. The deferred rollback
// fires on error returns, panics and context cancellation alike, so a
// checkout attempt that dies mid-flight leaves no reservations behind.
func (s *Store) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

var _ Tx = (*sqlTx)(nil)

// CartLines reads the buyer's cart in cart-line id order, with live product
// state joined in. Ordering is fixed so reservation order is reproducible.
func (t *sqlTx) CartLines(ctx context.Context, buyerID int64) ([]CheckoutLine, error) {
	lines := []CheckoutLine{}
	err := t.tx.SelectContext(ctx, &lines, `
		SELECT cl.id AS line_id,
		       cl.product_id,
		       cl.quantity,
		       p.name AS product_name,
		       p.price,
		       p.is_active
		FROM cart_lines cl
		LEFT JOIN products p ON p.id = cl.product_id
		WHERE cl.buyer_id = $1
		ORDER BY cl.id`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart lines: %w", err)
	}
	return lines, nil
}

// TryReserveStock atomically decrements stock if and only if enough is
// available. The WHERE clause carries the check, so two racing checkouts
// can never both pass it for the same unit of inventory; success is decided
// by the affected-row count alone. A false return means insufficient stock,
// never a transient condition.
func (t *sqlTx) TryReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`, quantity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// InsertOrder persists an order together with all its items. Item IDs and
// order timestamps are filled in from the database.
func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	err := t.tx.GetContext(ctx, order, `
		INSERT INTO orders (buyer_id, status, total_amount, idempotency_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		order.BuyerID, order.Status, order.TotalAmount, order.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := t.tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// DeleteCartLines removes every cart line for the buyer.
func (t *sqlTx) DeleteCartLines(ctx context.Context, buyerID int64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE buyer_id = $1`, buyerID)
	if err != nil {
		return fmt.Errorf("failed to delete cart lines: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `SELECT * FROM products WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}
