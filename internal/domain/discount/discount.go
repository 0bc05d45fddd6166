// Package discount implements discount codes: their admin form rules, the
// checks a code must pass to be redeemed and the arithmetic of applying it to
// a cart.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for discount operations.
var (
	ErrNotFound       = errors.New("discount code not found")
	ErrCodeTaken      = errors.New("discount code already exists")
	ErrInvalidCode    = errors.New("invalid discount code")
	ErrExpired        = errors.New("discount code expired")
	ErrLimitReached   = errors.New("discount code usage limit reached")
	ErrNotApplicable  = errors.New("discount code does not apply to any cart item")
	ErrUnknownProduct = errors.New("discount code references an unknown product")
)

// Type is the way a discount amount is interpreted.
type Type string

const (
	// TypePercentage takes DiscountAmount percent off the eligible subtotal.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixed takes DiscountAmount off, capped at the eligible subtotal.
	TypeFixed Type = "FIXED"
)

// Code is a discount code. Limit and ExpiresAt are optional.
type Code struct {
	ID             string
	Code           string
	DiscountAmount int
	DiscountType   Type
	Uses           int
	IsActive       bool
	AllProducts    bool
	ProductIDs     []string
	ProductTitles  []string
	Limit          *int
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Redeemable reports why c cannot be redeemed at now, or nil if it can.
func (c *Code) Redeemable(now time.Time) error {
	if !c.IsActive {
		return ErrInvalidCode
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.Limit != nil && c.Uses >= *c.Limit {
		return ErrLimitReached
	}
	return nil
}

// Repository defines persistence operations for discount codes.
type Repository interface {
	Create(ctx context.Context, c *Code) error
	Update(ctx context.Context, c *Code) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]Code, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id string) (*Code, error)
	GetByCode(ctx context.Context, code string) (*Code, error)
	// ListAll returns every code ordered by code descending.
	ListAll(ctx context.Context) ([]Code, error)
	// DeactivateStale deactivates active codes that expired before now or
	// exhausted their limit, returning how many changed.
	DeactivateStale(ctx context.Context, now time.Time) (int64, error)
}
