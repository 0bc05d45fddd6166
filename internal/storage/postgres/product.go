package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `p.id, p.title, p.slug, p.description, p.price, p.in_stock, p.sizes, p.tags,
		p.gender, p.category_id, c.name, p.created_at`

	productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

	listProductsSQL = `SELECT ` + productColumns + productFrom + `
		WHERE ($1 = '' OR p.gender = $1)
		ORDER BY p.created_at DESC, p.id
		OFFSET $2 LIMIT $3`

	countProductsSQL = `SELECT count(*) FROM products WHERE ($1 = '' OR gender = $1)`

	getProductByIDSQL = `SELECT ` + productColumns + productFrom + ` WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + productFrom + ` WHERE p.id = ANY($1)`

	getProductBySlugSQL = `SELECT ` + productColumns + productFrom + ` WHERE p.slug = $1`

	getStockBySlugSQL = `SELECT in_stock FROM products WHERE slug = $1`

	listCategoriesSQL = `SELECT id, name FROM categories ORDER BY name`

	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	listImagesSQL = `SELECT id, url, product_id FROM product_images WHERE product_id = ANY($1) ORDER BY id`

	insertProductSQL = `INSERT INTO products
		(id, title, slug, description, price, in_stock, sizes, tags, gender, category_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateProductSQL = `UPDATE products SET title = $2, slug = $3, description = $4, price = $5,
		in_stock = $6, sizes = $7, tags = $8, gender = $9, category_id = $10
		WHERE id = $1`

	insertImagesSQL = `INSERT INTO product_images (url, product_id) SELECT unnest($1::text[]), $2`

	deleteProductImagesSQL = `DELETE FROM product_images WHERE product_id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	deleteImageSQL = `DELETE FROM product_images WHERE id = $1 RETURNING id, url, product_id`

	productSalesSQL = `SELECT ` + productColumns + `,
		count(oi.id), COALESCE(sum(oi.quantity), 0), COALESCE(sum(oi.price * oi.quantity), 0)` + productFrom + `
		LEFT JOIN order_items oi ON oi.product_id = p.id
		GROUP BY p.id, c.name`

	topSellingSQL = productSalesSQL + ` ORDER BY count(oi.id) DESC, p.title LIMIT $1`

	revenueByProductSQL = productSalesSQL + ` ORDER BY 15 DESC, p.title`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns a page of products, newest first, with their images.
func (r *ProductRepository) List(ctx context.Context, f product.Filter, offset, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, string(f.Gender), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, r.attachImages(ctx, products)
}

// Count returns the number of products matching f.
func (r *ProductRepository) Count(ctx context.Context, f product.Filter) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countProductsSQL, string(f.Gender)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) getOne(ctx context.Context, sql string, arg any) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product %v: %w", arg, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %v: %w", arg, err)
	}
	products := []product.Product{p}
	if err := r.attachImages(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, r.attachImages(ctx, products)
}

// StockBySlug returns the units in stock of the product with slug.
func (r *ProductRepository) StockBySlug(ctx context.Context, slug string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, getStockBySlugSQL, slug).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("getting stock of %q: %w", slug, err)
	}
	return n, nil
}

// Categories returns every category ordered by name.
func (r *ProductRepository) Categories(ctx context.Context) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Category, error) {
		var c product.Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

// UpsertCategory inserts c or renames the existing category with c.ID.
func (r *ProductRepository) UpsertCategory(ctx context.Context, c product.Category) error {
	if _, err := r.pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name); err != nil {
		return fmt.Errorf("upserting category %q: %w", c.ID, err)
	}
	return nil
}

// Save inserts p when p.CreatedAt is set and updates it otherwise, then
// appends images. Both happen in one transaction.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product, images []string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if !p.CreatedAt.IsZero() {
			_, err := tx.Exec(ctx, insertProductSQL,
				p.ID, p.Title, p.Slug, p.Description, p.Price, p.InStock,
				p.Sizes, p.Tags, string(p.Gender), p.CategoryID, p.CreatedAt,
			)
			if err != nil {
				return err
			}
		} else {
			tag, err := tx.Exec(ctx, updateProductSQL,
				p.ID, p.Title, p.Slug, p.Description, p.Price, p.InStock,
				p.Sizes, p.Tags, string(p.Gender), p.CategoryID,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return product.ErrNotFound
			}
		}

		if len(images) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, insertImagesSQL, images, p.ID)
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, product.ErrNotFound):
		return err
	case isUniqueViolation(err):
		return product.ErrSlugTaken
	case isForeignKeyViolation(err):
		return product.ErrUnknownCategory
	default:
		return fmt.Errorf("saving product %q: %w", p.ID, err)
	}
}

// Delete removes the images of product id and then the product itself in
// one transaction.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteProductImagesSQL, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, deleteProductSQL, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return product.ErrNotFound
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, product.ErrNotFound):
		return err
	case isForeignKeyViolation(err):
		return product.ErrInUse
	default:
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
}

// DeleteImage removes image id and returns the deleted row.
func (r *ProductRepository) DeleteImage(ctx context.Context, id int64) (*product.Image, error) {
	var img product.Image
	err := r.pool.QueryRow(ctx, deleteImageSQL, id).Scan(&img.ID, &img.URL, &img.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrImageNotFound
		}
		return nil, fmt.Errorf("deleting image %d: %w", id, err)
	}
	return &img, nil
}

// TopSelling returns products ordered by the number of order lines. A
// non-positive limit returns all products.
func (r *ProductRepository) TopSelling(ctx context.Context, limit int) ([]product.Sales, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx, topSellingSQL, lim)
	if err != nil {
		return nil, fmt.Errorf("top selling products: %w", err)
	}
	return r.collectSales(ctx, rows)
}

// Revenue returns every product with the revenue of its order lines,
// highest first.
func (r *ProductRepository) Revenue(ctx context.Context) ([]product.Sales, error) {
	rows, err := r.pool.Query(ctx, revenueByProductSQL)
	if err != nil {
		return nil, fmt.Errorf("revenue by product: %w", err)
	}
	return r.collectSales(ctx, rows)
}

func (r *ProductRepository) collectSales(ctx context.Context, rows pgx.Rows) ([]product.Sales, error) {
	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Sales, error) {
		var (
			s       product.Sales
			gender  string
			revenue decimal.Decimal
		)
		p := &s.Product
		err := row.Scan(
			&p.ID, &p.Title, &p.Slug, &p.Description, &p.Price, &p.InStock, &p.Sizes, &p.Tags,
			&gender, &p.CategoryID, &p.Category, &p.CreatedAt,
			&s.Orders, &s.TotalSold, &revenue,
		)
		p.Gender = product.Gender(gender)
		s.Revenue = revenue
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting product sales: %w", err)
	}

	products := make([]product.Product, len(sales))
	for i := range sales {
		products[i] = sales[i].Product
	}
	if err := r.attachImages(ctx, products); err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Product.Images = products[i].Images
	}
	return sales, nil
}

// attachImages loads the images of products with a single query.
func (r *ProductRepository) attachImages(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
		products[i].Images = []product.Image{}
	}

	rows, err := r.pool.Query(ctx, listImagesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing product images: %w", err)
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Image, error) {
		var img product.Image
		err := row.Scan(&img.ID, &img.URL, &img.ProductID)
		return img, err
	})
	if err != nil {
		return fmt.Errorf("listing product images: %w", err)
	}
	for _, img := range images {
		i := index[img.ProductID]
		products[i].Images = append(products[i].Images, img)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		price  decimal.Decimal
		gender string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &price, &p.InStock, &p.Sizes, &p.Tags,
		&gender, &p.CategoryID, &p.Category, &p.CreatedAt,
	)
	p.Price = price
	p.Gender = product.Gender(gender)
	return p, err
}
