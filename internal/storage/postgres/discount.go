package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	discountSelect = `SELECT d.id, d.code, d.discount_amount, d.discount_type, d.uses, d.is_active,
		d.all_products, d.usage_limit, d.expires_at, d.created_at,
		COALESCE(array_agg(p.id ORDER BY p.title) FILTER (WHERE p.id IS NOT NULL), '{}'),
		COALESCE(array_agg(p.title ORDER BY p.title) FILTER (WHERE p.id IS NOT NULL), '{}')
		FROM discount_codes d
		LEFT JOIN discount_code_products dp ON dp.discount_code_id = d.id
		LEFT JOIN products p ON p.id = dp.product_id`

	getDiscountByIDSQL = discountSelect + ` WHERE d.id = $1 GROUP BY d.id`

	getDiscountByCodeSQL = discountSelect + ` WHERE d.code = $1 GROUP BY d.id`

	listDiscountsSQL = discountSelect + ` GROUP BY d.id ORDER BY d.created_at DESC, d.id OFFSET $1 LIMIT $2`

	listAllDiscountsSQL = discountSelect + ` GROUP BY d.id ORDER BY d.code DESC`

	countDiscountsSQL = `SELECT count(*) FROM discount_codes`

	insertDiscountSQL = `INSERT INTO discount_codes
		(id, code, discount_amount, discount_type, uses, is_active, all_products, usage_limit, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	upsertDiscountSQL = insertDiscountSQL + `
		ON CONFLICT (code) DO UPDATE SET discount_amount = EXCLUDED.discount_amount,
			discount_type = EXCLUDED.discount_type, all_products = EXCLUDED.all_products,
			usage_limit = EXCLUDED.usage_limit, expires_at = EXCLUDED.expires_at
		RETURNING (xmax = 0)`

	updateDiscountSQL = `UPDATE discount_codes SET code = $2, discount_amount = $3, discount_type = $4,
		all_products = $5, usage_limit = $6, expires_at = $7
		WHERE id = $1`

	linkDiscountProductsSQL = `INSERT INTO discount_code_products (discount_code_id, product_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`

	unlinkDiscountProductsSQL = `DELETE FROM discount_code_products WHERE discount_code_id = $1`

	setDiscountActiveSQL = `UPDATE discount_codes SET is_active = $2 WHERE id = $1`

	deleteDiscountSQL = `DELETE FROM discount_codes WHERE id = $1`

	deactivateStaleDiscountsSQL = `UPDATE discount_codes SET is_active = FALSE
		WHERE is_active
		AND ((expires_at IS NOT NULL AND expires_at <= $1)
			OR (usage_limit IS NOT NULL AND uses >= usage_limit))`

	// redeemDiscountSQL records a use unless the code is inactive, expired
	// or exhausted. It is run inside the order placement transaction.
	redeemDiscountSQL = `UPDATE discount_codes SET uses = uses + 1
		WHERE id = $1 AND is_active
		AND (expires_at IS NULL OR expires_at > now())
		AND (usage_limit IS NULL OR uses < usage_limit)`

	redeemStateSQL = `SELECT is_active, expires_at IS NOT NULL AND expires_at <= now()
		FROM discount_codes WHERE id = $1`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// Create inserts c and links its products in one transaction.
func (r *DiscountRepository) Create(ctx context.Context, c *discount.Code) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertDiscountSQL,
			c.ID, c.Code, c.DiscountAmount, string(c.DiscountType), c.Uses, c.IsActive,
			c.AllProducts, c.Limit, c.ExpiresAt, c.CreatedAt,
		)
		if err != nil {
			return err
		}
		return linkProducts(ctx, tx, c)
	})
	return discountWriteErr(err, "creating discount code "+c.Code)
}

// Upsert inserts c or, when its code exists, overwrites the amount, type
// and bounds. Uses and the active flag of existing codes are kept. It
// reports whether a new row was inserted.
func (r *DiscountRepository) Upsert(ctx context.Context, c *discount.Code) (bool, error) {
	var inserted bool
	err := r.pool.QueryRow(ctx, upsertDiscountSQL,
		c.ID, c.Code, c.DiscountAmount, string(c.DiscountType), c.Uses, c.IsActive,
		c.AllProducts, c.Limit, c.ExpiresAt, c.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting discount code %q: %w", c.Code, err)
	}
	return inserted, nil
}

// Update overwrites c and replaces its product links in one transaction.
func (r *DiscountRepository) Update(ctx context.Context, c *discount.Code) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateDiscountSQL,
			c.ID, c.Code, c.DiscountAmount, string(c.DiscountType), c.AllProducts, c.Limit, c.ExpiresAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return discount.ErrNotFound
		}
		if _, err := tx.Exec(ctx, unlinkDiscountProductsSQL, c.ID); err != nil {
			return err
		}
		return linkProducts(ctx, tx, c)
	})
	return discountWriteErr(err, "updating discount code "+c.ID)
}

func linkProducts(ctx context.Context, tx pgx.Tx, c *discount.Code) error {
	if c.AllProducts || len(c.ProductIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, linkDiscountProductsSQL, c.ID, c.ProductIDs)
	return err
}

func discountWriteErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, discount.ErrNotFound):
		return err
	case isUniqueViolation(err):
		return discount.ErrCodeTaken
	case isForeignKeyViolation(err):
		return discount.ErrUnknownProduct
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// SetActive sets the active flag of code id.
func (r *DiscountRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, setDiscountActiveSQL, id, active)
	if err != nil {
		return fmt.Errorf("setting discount code %q active: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Delete removes code id. Orders keep their totals and lose the reference.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteDiscountSQL, id)
	if err != nil {
		return fmt.Errorf("deleting discount code %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// List returns a page of codes, newest first.
func (r *DiscountRepository) List(ctx context.Context, offset, limit int) ([]discount.Code, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// Count returns the number of codes.
func (r *DiscountRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countDiscountsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting discount codes: %w", err)
	}
	return n, nil
}

func (r *DiscountRepository) getOne(ctx context.Context, sql string, arg string) (*discount.Code, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting discount code %q: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting discount code %q: %w", arg, err)
	}
	return &c, nil
}

// GetByID returns code id.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*discount.Code, error) {
	return r.getOne(ctx, getDiscountByIDSQL, id)
}

// GetByCode returns the code whose text matches code exactly.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*discount.Code, error) {
	return r.getOne(ctx, getDiscountByCodeSQL, code)
}

// ListAll returns every code ordered by code descending.
func (r *DiscountRepository) ListAll(ctx context.Context) ([]discount.Code, error) {
	rows, err := r.pool.Query(ctx, listAllDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing all discount codes: %w", err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// DeactivateStale deactivates expired and exhausted codes.
func (r *DiscountRepository) DeactivateStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deactivateStaleDiscountsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("deactivating stale discount codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Existing returns the subset of codes already stored.
func (r *DiscountRepository) Existing(ctx context.Context, codes []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT code FROM discount_codes WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("checking existing discount codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanDiscount(row pgx.CollectableRow) (discount.Code, error) {
	var (
		c     discount.Code
		typ   string
		limit *int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountAmount, &typ, &c.Uses, &c.IsActive,
		&c.AllProducts, &limit, &c.ExpiresAt, &c.CreatedAt,
		&c.ProductIDs, &c.ProductTitles,
	)
	c.DiscountType = discount.Type(typ)
	if limit != nil {
		l := int(*limit)
		c.Limit = &l
	}
	return c, err
}
