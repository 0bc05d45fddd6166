package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/pkg/pagination"
)

// DefaultPageSize is the storefront listing page size.
const DefaultPageSize = 12

// Service implements catalog operations.
type Service struct {
	repo     Repository
	pageSize int
	now      func() time.Time
}

// NewService creates a catalog Service. A non-positive pageSize selects
// DefaultPageSize.
func NewService(repo Repository, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{repo: repo, pageSize: pageSize, now: time.Now}
}

// List returns one page of products with their images.
func (s *Service) List(ctx context.Context, p pagination.Params, f Filter) (pagination.Page[Product], error) {
	if f.Gender != "" && !f.Gender.Valid() {
		return pagination.Page[Product]{}, errors.Errorf("unknown gender %q", f.Gender)
	}
	p = p.Normalize(s.pageSize, 100)

	products, err := s.repo.List(ctx, f, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[Product]{}, errors.Wrap(err, "list products")
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return pagination.Page[Product]{}, errors.Wrap(err, "count products")
	}
	return pagination.NewPage(products, p, total), nil
}

// GetBySlug returns the product published under slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// Stock returns the units in stock of the product published under slug.
func (s *Service) Stock(ctx context.Context, slug string) (int, error) {
	return s.repo.StockBySlug(ctx, slug)
}

// Categories returns every category.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// Save creates the product described by f, or updates it when f.ID is set.
// Image URLs in f are appended to the product's existing images.
func (s *Service) Save(ctx context.Context, f Form) (*Product, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	p := f.Product()
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = s.now()
	}
	if err := s.repo.Save(ctx, p, f.Images); err != nil {
		switch {
		case errors.Is(err, ErrSlugTaken), errors.Is(err, ErrUnknownCategory), errors.Is(err, ErrNotFound):
			return nil, err
		default:
			return nil, errors.Wrap(err, "save product")
		}
	}

	saved, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reload product")
	}
	return saved, nil
}

// Delete removes product id together with its images.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInUse) {
			return err
		}
		return errors.Wrap(err, "delete product")
	}
	return nil
}

// DeleteImage removes a single product image and returns it.
func (s *Service) DeleteImage(ctx context.Context, id int64) (*Image, error) {
	img, err := s.repo.DeleteImage(ctx, id)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "delete image")
	}
	return img, nil
}

// TopSelling returns up to limit products ordered by order count. A
// non-positive limit returns every product.
func (s *Service) TopSelling(ctx context.Context, limit int) ([]Sales, error) {
	sales, err := s.repo.TopSelling(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top selling")
	}
	return sales, nil
}

// Revenue returns every product with the revenue of its order lines.
func (s *Service) Revenue(ctx context.Context) ([]Sales, error) {
	sales, err := s.repo.Revenue(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "revenue by product")
	}
	return sales, nil
}
