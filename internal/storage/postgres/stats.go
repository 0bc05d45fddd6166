package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/stats"
)

const (
	statsCountUsersSQL = `SELECT count(*) FROM users`

	statsCountUsersWithOrdersSQL = `SELECT count(*) FROM users u
		WHERE EXISTS (SELECT 1 FROM orders o WHERE o.user_id = u.id AND o.created_at >= $1)`

	statsCountOrdersSQL = `SELECT count(*) FROM orders WHERE created_at >= $1`

	statsCountProductsSQL = `SELECT count(*) FROM products`

	statsCountLowStockSQL = `SELECT count(*) FROM products WHERE in_stock < $1`

	statsCategoryNamesSQL = `SELECT name FROM categories ORDER BY name`

	statsPaidTotalsSQL = `SELECT total FROM orders WHERE is_paid AND created_at >= $1`

	statsProductLinesSQL = `SELECT p.id, p.title, p.description, p.in_stock, p.price, p.sizes, p.slug, p.tags,
		p.gender, c.name, COALESCE(l.quantity, 0), COALESCE(l.price, 0)
		FROM products p
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN (
			SELECT oi.product_id, oi.quantity, oi.price
			FROM order_items oi JOIN orders o ON o.id = oi.order_id
			WHERE o.created_at BETWEEN $1 AND $2
		) l ON l.product_id = p.id
		ORDER BY p.id`

	statsOrderLinesSQL = `SELECT o.id, o.user_id, u.name, u.email, o.total, o.is_paid, o.created_at,
		oi.quantity, oi.price
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.created_at BETWEEN $1 AND $2
		ORDER BY o.created_at, o.id, oi.id`

	statsUserOrdersSQL = `SELECT u.id, u.name, u.email, u.role, COALESCE(o.id, ''), COALESCE(o.total, 0)
		FROM users u
		LEFT JOIN orders o ON o.user_id = u.id AND o.created_at BETWEEN $1 AND $2
		ORDER BY u.name, u.id, o.created_at`
)

var _ stats.Repository = (*StatsRepository)(nil)

// StatsRepository implements stats.Repository backed by PostgreSQL.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a StatsRepository that uses the given pool.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) count(ctx context.Context, what, sql string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", what, err)
	}
	return n, nil
}

// CountUsers counts all registered users.
func (r *StatsRepository) CountUsers(ctx context.Context) (int, error) {
	return r.count(ctx, "users", statsCountUsersSQL)
}

// CountUsersWithOrdersSince counts users with an order created at or after
// since.
func (r *StatsRepository) CountUsersWithOrdersSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, "users with orders", statsCountUsersWithOrdersSQL, since)
}

// CountOrders counts orders created at or after since.
func (r *StatsRepository) CountOrders(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, "orders", statsCountOrdersSQL, since)
}

// CountProducts counts all products.
func (r *StatsRepository) CountProducts(ctx context.Context) (int, error) {
	return r.count(ctx, "products", statsCountProductsSQL)
}

// CountLowStock counts products with fewer than below units in stock.
func (r *StatsRepository) CountLowStock(ctx context.Context, below int) (int, error) {
	return r.count(ctx, "low stock products", statsCountLowStockSQL, below)
}

// CategoryNames returns the names of all categories.
func (r *StatsRepository) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, statsCategoryNamesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing category names: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// PaidTotals returns the totals of paid orders created at or after since.
func (r *StatsRepository) PaidTotals(ctx context.Context, since time.Time) ([]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, statsPaidTotalsSQL, since)
	if err != nil {
		return nil, fmt.Errorf("listing paid totals: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[decimal.Decimal])
}

// ProductLines returns every product joined with its order lines inside
// rng. Products without sales yield one line with zero quantity.
func (r *StatsRepository) ProductLines(ctx context.Context, rng stats.Range) ([]stats.ProductLine, error) {
	rows, err := r.pool.Query(ctx, statsProductLinesSQL, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("listing product lines: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.ProductLine, error) {
		var l stats.ProductLine
		err := row.Scan(
			&l.ProductID, &l.Title, &l.Description, &l.InStock, &l.Price, &l.Sizes, &l.Slug, &l.Tags,
			&l.Gender, &l.Category, &l.Quantity, &l.LinePrice,
		)
		return l, err
	})
}

// OrderLines returns the items of orders created inside rng, oldest first.
func (r *StatsRepository) OrderLines(ctx context.Context, rng stats.Range) ([]stats.OrderLine, error) {
	rows, err := r.pool.Query(ctx, statsOrderLinesSQL, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("listing order lines: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.OrderLine, error) {
		var l stats.OrderLine
		err := row.Scan(
			&l.OrderID, &l.UserID, &l.UserName, &l.UserEmail, &l.Total, &l.IsPaid, &l.CreatedAt,
			&l.Quantity, &l.Price,
		)
		return l, err
	})
}

// UserOrders returns every user joined with their orders inside rng. Users
// without orders yield one row with an empty order id.
func (r *StatsRepository) UserOrders(ctx context.Context, rng stats.Range) ([]stats.UserOrder, error) {
	rows, err := r.pool.Query(ctx, statsUserOrdersSQL, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("listing user orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.UserOrder, error) {
		var u stats.UserOrder
		err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.Role, &u.OrderID, &u.OrderTotal)
		return u, err
	})
}
