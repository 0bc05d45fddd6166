// Package pagination implements offset/limit paging over counted result sets.
package pagination

import "math"

// Params selects a page of results. Page is 1-based.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps Page to at least 1 and PageSize into [1, maxSize],
// substituting defaultSize for non-positive sizes. A non-positive maxSize
// disables the upper bound. Page is capped so that Offset fits in an int.
func (p Params) Normalize(defaultSize, maxSize int) Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultSize
	}
	if maxSize > 0 && p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	if p.PageSize > 0 && p.Page > math.MaxInt/p.PageSize {
		p.Page = math.MaxInt / p.PageSize
	}
	return p
}

// Offset returns the number of rows to skip, saturating at math.MaxInt.
func (p Params) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the number of rows to take.
func (p Params) Limit() int {
	return p.PageSize
}

// TotalPages returns ceil(count / pageSize), or 0 when there is nothing to page.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Page is a single page of items together with the paging metadata.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	TotalPages  int
	PageSize    int
	TotalCount  int
}

// NewPage assembles a Page from the fetched items and the total row count.
func NewPage[T any](items []T, p Params, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		CurrentPage: p.Page,
		TotalPages:  TotalPages(total, p.PageSize),
		PageSize:    p.PageSize,
		TotalCount:  total,
	}
}
