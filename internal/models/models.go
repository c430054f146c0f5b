package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog. Checkout only ever mutates
// Stock, and only through the conditional decrement in the store.
type Product struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     int             `db:"stock" json:"stock"`
	Rating    float64         `db:"rating" json:"rating"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// CartLine is one (buyer, product) entry in a cart, unique per buyer+product.
// Consumed and deleted as a whole set by a successful checkout.
type CartLine struct {
	ID        int64     `db:"id" json:"id"`
	BuyerID   int64     `db:"buyer_id" json:"buyer_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order is the durable result of a checkout.
type Order struct {
	ID             int64           `db:"id" json:"id"`
	BuyerID        int64           `db:"buyer_id" json:"buyer_id"`
	Status         string          `db:"status" json:"status"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items"`
}

// OrderItem is an immutable receipt line. UnitPrice is the product price
// captured at checkout time; later product changes never alter it.
type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	ProductID  int64           `db:"product_id" json:"product_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// Review is a buyer's review of a product. Soft-deleted via IsActive.
type Review struct {
	ID        int64     `db:"id" json:"id"`
	BuyerID   int64     `db:"buyer_id" json:"buyer_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Grade     int       `db:"grade" json:"grade"`
	Comment   string    `db:"comment" json:"comment,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses. Checkout only ever creates orders as pending; downstream
// subsystems own the later transitions.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderPage is one page of a buyer's order history.
type OrderPage struct {
	Items    []Order `json:"items"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
