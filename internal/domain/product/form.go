package product

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/validation"
)

// Form is the admin create/update form. An empty ID creates a product.
type Form struct {
	ID          string          `json:"id" validate:"omitempty,uuid"`
	Title       string          `json:"title" validate:"required"`
	Slug        string          `json:"slug" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	InStock     int             `json:"inStock" validate:"gte=0"`
	Sizes       []string        `json:"sizes" validate:"dive,size"`
	Tags        string          `json:"tags"`
	Gender      Gender          `json:"gender" validate:"required,gender"`
	CategoryID  string          `json:"categoryId" validate:"required"`
	Images      []string        `json:"images" validate:"dive,url"`
}

// Validate checks f field by field.
func (f Form) Validate() error {
	errs := validation.Check(f)
	if f.Price.IsNegative() {
		errs.Add("price", "must be at least 0")
	}
	return errs.Err()
}

// NormalizeSlug lower-cases s, trims it and replaces spaces with '_'.
func NormalizeSlug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// SplitTags parses a comma separated tag list, lower-casing each tag and
// dropping empty ones.
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// Product converts f into the product it describes.
func (f Form) Product() *Product {
	sizes := f.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	tags := SplitTags(f.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &Product{
		ID:          f.ID,
		Title:       strings.TrimSpace(f.Title),
		Slug:        NormalizeSlug(f.Slug),
		Description: f.Description,
		Price:       f.Price.Round(2),
		InStock:     f.InStock,
		Sizes:       sizes,
		Tags:        tags,
		Gender:      f.Gender,
		CategoryID:  f.CategoryID,
	}
}
