package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrEmptyItems  = errors.New("items required")
	ErrNotFound    = errors.New("order not found")
	ErrForbidden   = errors.New("order belongs to another user")
	ErrAlreadyPaid = errors.New("order already paid")
	ErrNoAddress   = errors.New("shipping address required")
	ErrNoTxID      = errors.New("transaction id required")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// SizeUnavailableError indicates a product is not sold in the requested size.
type SizeUnavailableError struct {
	ProductID string
	Size      string
}

func (e *SizeUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available in size %q", e.ProductID, e.Size)
}

// OutOfStockError indicates the requested quantity exceeds the stock.
type OutOfStockError struct {
	ProductID string
	Title     string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	name := e.Title
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("%s: requested %d, %d in stock", name, e.Requested, e.Available)
}
