package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
)

// Order is a placed customer order with its pricing breakdown.
type Order struct {
	ID             string
	UserID         string
	UserEmail      string
	SubTotal       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	ItemsInOrder   int
	IsPaid         bool
	PaidAt         *time.Time
	TransactionID  string
	DiscountCodeID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []Item
	Address        *address.Address
}

// Item is an order line. Price is the unit price at the time of purchase.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Price     decimal.Decimal `json:"-"`
	Title     string          `json:"-"`
	Slug      string          `json:"-"`
	Image     string          `json:"-"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place persists o atomically: it decrements stock of every line,
	// records a use of o.DiscountCodeID when set and inserts the order with
	// its items and address.
	Place(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, offset, limit int) ([]Order, error)
	Count(ctx context.Context) (int, error)
	SetTransactionID(ctx context.Context, id, transactionID string) error
	MarkPaid(ctx context.Context, id string, at time.Time) error
}
