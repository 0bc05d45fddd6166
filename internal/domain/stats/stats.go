// Package stats builds the admin dashboard and report projections from
// order, product and user rows.
package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Range bounds a report by order creation time, inclusive on both ends.
// Zero values select the report's default bound.
type Range struct {
	Start time.Time
	End   time.Time
}

// ProductLine is a product joined with one of its order lines in range. A
// product without lines in range yields a single row with zero Quantity.
type ProductLine struct {
	ProductID   string
	Title       string
	Description string
	InStock     int
	Price       decimal.Decimal
	Sizes       []string
	Slug        string
	Tags        []string
	Gender      string
	Category    string
	Quantity    int
	LinePrice   decimal.Decimal
}

// OrderLine is an order in range joined with one of its items.
type OrderLine struct {
	OrderID   string
	UserID    string
	UserName  string
	UserEmail string
	Total     decimal.Decimal
	IsPaid    bool
	CreatedAt time.Time
	Quantity  int
	Price     decimal.Decimal
}

// UserOrder is a user joined with one of their orders in range. A user
// without orders in range yields a single row with empty OrderID.
type UserOrder struct {
	UserID     string
	Name       string
	Email      string
	Role       string
	OrderID    string
	OrderTotal decimal.Decimal
}

// Repository reads the rows statistics are reduced from.
type Repository interface {
	CountUsers(ctx context.Context) (int, error)
	// CountUsersWithOrdersSince counts users having an order created at or
	// after since.
	CountUsersWithOrdersSince(ctx context.Context, since time.Time) (int, error)
	// CountOrders counts orders created at or after since.
	CountOrders(ctx context.Context, since time.Time) (int, error)
	CountProducts(ctx context.Context) (int, error)
	CountLowStock(ctx context.Context, below int) (int, error)
	// CategoryNames returns the name of every category, products or not.
	CategoryNames(ctx context.Context) ([]string, error)
	// PaidTotals returns the totals of paid orders created at or after since.
	PaidTotals(ctx context.Context, since time.Time) ([]decimal.Decimal, error)
	ProductLines(ctx context.Context, r Range) ([]ProductLine, error)
	OrderLines(ctx context.Context, r Range) ([]OrderLine, error)
	UserOrders(ctx context.Context, r Range) ([]UserOrder, error)
}

// ProductSales is a product with the units and revenue of its order lines.
type ProductSales struct {
	ProductID   string
	Name        string
	Description string
	InStock     int
	Price       decimal.Decimal
	Sizes       []string
	Slug        string
	Tags        []string
	Gender      string
	Category    string
	Sales       int
	Revenue     decimal.Decimal
}

// CategorySales is the number of units sold in a category.
type CategorySales struct {
	Category string
	Sales    int
}

// Summary is the admin dashboard.
type Summary struct {
	TotalUsers         int
	NewUsersThisMonth  int
	TotalOrders        int
	OrdersThisMonth    int
	TotalProducts      int
	LowStockProducts   int
	TotalRevenue       decimal.Decimal
	RevenueThisMonth   decimal.Decimal
	TopSellingProducts []ProductSales
	SalesByCategory    []CategorySales
}

// OrderRevenue is an order with the revenue of its items.
type OrderRevenue struct {
	OrderID      string
	UserID       string
	UserName     string
	UserEmail    string
	Total        decimal.Decimal
	IsPaid       bool
	CreatedAt    time.Time
	Items        int
	TotalRevenue decimal.Decimal
}

// UserSpend is a user with the orders placed in range.
type UserSpend struct {
	UserID      string
	Name        string
	Email       string
	Role        string
	TotalOrders int
	TotalSpent  decimal.Decimal
}

// PerDate is the date-ranged report.
type PerDate struct {
	Start    time.Time
	End      time.Time
	Products []ProductSales
	Orders   []OrderRevenue
	Users    []UserSpend
}
