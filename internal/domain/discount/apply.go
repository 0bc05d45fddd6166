package discount

import (
	"github.com/shopspring/decimal"
)

// Line is a cart line considered for a discount.
type Line struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

var hundred = decimal.NewFromInt(100)

// Apply computes the amount c takes off lines. Only lines whose product the
// code covers count towards the eligible subtotal. The result is rounded to
// two decimal places and never exceeds the eligible subtotal.
func Apply(c *Code, lines []Line) (decimal.Decimal, error) {
	covered := make(map[string]struct{}, len(c.ProductIDs))
	for _, id := range c.ProductIDs {
		covered[id] = struct{}{}
	}

	eligible := decimal.Zero
	matched := false
	for _, l := range lines {
		if !c.AllProducts {
			if _, ok := covered[l.ProductID]; !ok {
				continue
			}
		}
		matched = true
		eligible = eligible.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if !matched {
		return decimal.Zero, ErrNotApplicable
	}

	amount := decimal.NewFromInt(int64(c.DiscountAmount))
	var off decimal.Decimal
	switch c.DiscountType {
	case TypePercentage:
		off = eligible.Mul(amount).Div(hundred)
	case TypeFixed:
		off = decimal.Min(amount, eligible)
	default:
		return decimal.Zero, ErrInvalidCode
	}
	if off.GreaterThan(eligible) {
		off = eligible
	}
	return off.Round(2), nil
}
