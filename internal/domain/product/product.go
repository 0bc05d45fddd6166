package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound        = errors.New("product not found")
	ErrImageNotFound   = errors.New("product image not found")
	ErrSlugTaken       = errors.New("slug already in use")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInUse           = errors.New("product is referenced by orders")
)

// Gender is the audience a product targets.
type Gender string

const (
	GenderMen    Gender = "men"
	GenderWomen  Gender = "women"
	GenderKid    Gender = "kid"
	GenderUnisex Gender = "unisex"
)

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	switch g {
	case GenderMen, GenderWomen, GenderKid, GenderUnisex:
		return true
	}
	return false
}

// Product is a catalog item available for purchase.
type Product struct {
	ID          string
	Title       string
	Slug        string
	Description string
	Price       decimal.Decimal
	InStock     int
	Sizes       []string
	Tags        []string
	Gender      Gender
	CategoryID  string
	Category    string
	Images      []Image
	CreatedAt   time.Time
}

// HasSize reports whether p is sold in size.
func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Image is a product picture.
type Image struct {
	ID        int64
	URL       string
	ProductID string
}

// Category groups products.
type Category struct {
	ID   string
	Name string
}

// Sales aggregates the order lines of a product.
type Sales struct {
	Product   Product
	TotalSold int
	Orders    int
	Revenue   decimal.Decimal
}

// Filter narrows product listings. Zero values match everything.
type Filter struct {
	Gender Gender
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter, offset, limit int) ([]Product, error)
	Count(ctx context.Context, f Filter) (int, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	StockBySlug(ctx context.Context, slug string) (int, error)
	Categories(ctx context.Context) ([]Category, error)
	// Save inserts or updates p by id and appends images to it.
	Save(ctx context.Context, p *Product, images []string) error
	// Delete removes the product and its images atomically.
	Delete(ctx context.Context, id string) error
	DeleteImage(ctx context.Context, id int64) (*Image, error)
	// TopSelling orders products by number of order lines, descending.
	TopSelling(ctx context.Context, limit int) ([]Sales, error)
	Revenue(ctx context.Context) ([]Sales, error)
}
