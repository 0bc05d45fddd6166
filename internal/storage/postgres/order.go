package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `o.id, o.user_id, u.email, o.sub_total, o.tax, o.discount, o.total, o.items_in_order,
		o.is_paid, o.paid_at, COALESCE(o.transaction_id, ''), COALESCE(o.discount_code_id, ''),
		o.created_at, o.updated_at`

	orderFrom = ` FROM orders o JOIN users u ON u.id = o.user_id`

	getOrderByIDSQL = `SELECT ` + orderColumns + orderFrom + ` WHERE o.id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + orderFrom + `
		WHERE o.user_id = $1 ORDER BY o.created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + `, a.first_name, a.last_name` + orderFrom + `
		LEFT JOIN order_addresses a ON a.order_id = o.id
		ORDER BY o.created_at DESC, o.id
		OFFSET $1 LIMIT $2`

	countOrdersSQL = `SELECT count(*) FROM orders`

	getOrderItemsSQL = `SELECT oi.product_id, oi.quantity, oi.size, oi.price, p.title, p.slug,
		COALESCE((SELECT url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.id LIMIT 1), '')
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 ORDER BY oi.id`

	getOrderAddressSQL = `SELECT first_name, last_name, address, address2, postal_code, city, country_id, phone
		FROM order_addresses WHERE order_id = $1`

	decrementStockSQL = `UPDATE products SET in_stock = in_stock - $2 WHERE id = $1 AND in_stock >= $2`

	getStockSQL = `SELECT title, in_stock FROM products WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders
		(id, sub_total, tax, discount, total, items_in_order, discount_code_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertOrderItemSQL = `INSERT INTO order_items (quantity, price, size, order_id, product_id)
		VALUES ($1, $2, $3, $4, $5)`

	insertOrderAddressSQL = `INSERT INTO order_addresses
		(id, first_name, last_name, address, address2, postal_code, phone, city, country_id, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	setTransactionIDSQL = `UPDATE orders SET transaction_id = $2, updated_at = now() WHERE id = $1`

	markOrderPaidSQL = `UPDATE orders SET is_paid = TRUE, paid_at = $2, updated_at = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place persists o in one transaction. Stock is decremented only while it
// covers the ordered quantity and the discount code use is recorded only
// while the code is active and under its limit, so concurrent orders cannot
// oversell or over-redeem.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	quantities := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		quantities[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	// Lock rows in a stable order.
	sort.Strings(ids)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, id := range ids {
			tag, err := tx.Exec(ctx, decrementStockSQL, id, quantities[id])
			if err != nil {
				return fmt.Errorf("decrementing stock of %q: %w", id, err)
			}
			if tag.RowsAffected() == 1 {
				continue
			}
			oos := &order.OutOfStockError{ProductID: id, Requested: quantities[id]}
			if err := tx.QueryRow(ctx, getStockSQL, id).Scan(&oos.Title, &oos.Available); err != nil {
				return fmt.Errorf("reading stock of %q: %w", id, err)
			}
			return oos
		}

		if o.DiscountCodeID != "" {
			tag, err := tx.Exec(ctx, redeemDiscountSQL, o.DiscountCodeID)
			if err != nil {
				return fmt.Errorf("redeeming discount code: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return redeemFailure(ctx, tx, o.DiscountCodeID)
			}
		}

		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.SubTotal, o.Tax, o.Discount, o.Total, o.ItemsInOrder,
			nullIfEmpty(o.DiscountCodeID), o.UserID, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(insertOrderItemSQL, it.Quantity, it.Price, it.Size, o.ID, it.ProductID)
		}
		if o.Address != nil {
			a := o.Address
			batch.Queue(insertOrderAddressSQL,
				uuid.New().String(), a.FirstName, a.LastName, a.Address, a.Address2,
				a.PostalCode, a.Phone, a.City, a.Country, o.ID,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		var oos *order.OutOfStockError
		if errors.As(err, &oos) || errors.Is(err, discount.ErrLimitReached) {
			return err
		}
		return fmt.Errorf("placing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns order id with its items and shipping address.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.Quantity, &it.Size, &it.Price, &it.Title, &it.Slug, &it.Image)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getOrderAddressSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting address of order %q: %w", id, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	switch {
	case err == nil:
		o.Address = &a
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("getting address of order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the orders of userID, newest first, without items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns a page of orders, newest first, with the names on the
// shipping address.
func (r *OrderRepository) List(ctx context.Context, offset, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var (
			o                   order.Order
			firstName, lastName *string
		)
		err := row.Scan(append(orderDest(&o), &firstName, &lastName)...)
		if firstName != nil && lastName != nil {
			o.Address = &address.Address{FirstName: *firstName, LastName: *lastName}
		}
		return o, err
	})
}

// Count returns the number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// SetTransactionID records the payment transaction of order id.
func (r *OrderRepository) SetTransactionID(ctx context.Context, id, transactionID string) error {
	tag, err := r.pool.Exec(ctx, setTransactionIDSQL, id, transactionID)
	if err != nil {
		return fmt.Errorf("setting transaction of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaid flags order id as paid at the given time.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id, at)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func orderDest(o *order.Order) []any {
	return []any{
		&o.ID, &o.UserID, &o.UserEmail, &o.SubTotal, &o.Tax, &o.Discount, &o.Total, &o.ItemsInOrder,
		&o.IsPaid, &o.PaidAt, &o.TransactionID, &o.DiscountCodeID,
		&o.CreatedAt, &o.UpdatedAt,
	}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(orderDest(&o)...)
	return o, err
}

// redeemFailure reports why a discount code could not be redeemed.
func redeemFailure(ctx context.Context, tx pgx.Tx, id string) error {
	var active, expired bool
	if err := tx.QueryRow(ctx, redeemStateSQL, id).Scan(&active, &expired); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.ErrInvalidCode
		}
		return fmt.Errorf("reading discount code state: %w", err)
	}
	switch {
	case !active:
		return discount.ErrInvalidCode
	case expired:
		return discount.ErrExpired
	default:
		return discount.ErrLimitReached
	}
}
