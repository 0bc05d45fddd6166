package discount

import (
	"strings"
	"time"

	"github.com/xenking/storefront/internal/validation"
)

// Messages of the cross-field form rules.
const (
	MsgPercentageTooLarge = "Percentage discount must be less than or equal to 100"
	MsgProductsWithAll    = "Cannot select products when all products is selected"
	MsgProductsRequired   = "Must select products when all products is not selected"
	MsgExpiresInPast      = "must not be in the past"
)

const maxPercentage = 100

// Form is the admin create/update form. A nil ProductIDs means "no
// selection", which differs from an empty selection.
type Form struct {
	Code           string     `json:"code" validate:"required"`
	DiscountAmount int        `json:"discountAmount" validate:"min=1"`
	DiscountType   Type       `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	AllProducts    bool       `json:"allProducts"`
	ProductIDs     []string   `json:"productIds"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	Limit          *int       `json:"limit" validate:"omitempty,min=1"`
}

// Validate checks f at time now and returns validation.Errors keyed by field.
func (f Form) Validate(now time.Time) error {
	errs := validation.Check(f)

	if f.DiscountType == TypePercentage && f.DiscountAmount > maxPercentage {
		errs.Add("discountAmount", MsgPercentageTooLarge)
	}
	if f.AllProducts && f.ProductIDs != nil {
		errs.Add("productIds", MsgProductsWithAll)
	}
	if !f.AllProducts && f.ProductIDs == nil {
		errs.Add("productIds", MsgProductsRequired)
	}
	if f.ExpiresAt != nil && f.ExpiresAt.Before(now) {
		errs.Add("expiresAt", MsgExpiresInPast)
	}
	return errs.Err()
}

// apply copies the form fields onto c.
func (f Form) apply(c *Code) {
	c.Code = strings.TrimSpace(f.Code)
	c.DiscountAmount = f.DiscountAmount
	c.DiscountType = f.DiscountType
	c.AllProducts = f.AllProducts
	c.ProductIDs = f.ProductIDs
	c.ExpiresAt = f.ExpiresAt
	c.Limit = f.Limit
}
