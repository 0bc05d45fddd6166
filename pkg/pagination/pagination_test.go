package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		pageSize int
		want     int
	}{
		{name: "empty", count: 0, pageSize: 10, want: 0},
		{name: "exact multiple", count: 30, pageSize: 10, want: 3},
		{name: "partial last page", count: 31, pageSize: 10, want: 4},
		{name: "fewer than a page", count: 3, pageSize: 10, want: 1},
		{name: "single item pages", count: 7, pageSize: 1, want: 7},
		{name: "zero page size", count: 7, pageSize: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPages(tt.count, tt.pageSize))
		})
	}
}

func TestParams_Offset(t *testing.T) {
	assert.Equal(t, 0, Params{Page: 1, PageSize: 10}.Offset())
	assert.Equal(t, 10, Params{Page: 2, PageSize: 10}.Offset())
	assert.Equal(t, 48, Params{Page: 5, PageSize: 12}.Offset())
	assert.Equal(t, 0, Params{Page: 0, PageSize: 12}.Offset())
	assert.Equal(t, math.MaxInt, Params{Page: math.MaxInt, PageSize: 10}.Offset())

	huge := Params{Page: math.MaxInt}.Normalize(10, 100)
	assert.Equal(t, math.MaxInt/10, huge.Page)
	assert.GreaterOrEqual(t, huge.Offset(), 0)
	assert.Equal(t, (math.MaxInt/10-1)*10, huge.Offset())
}

func TestParams_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{name: "defaults applied", in: Params{}, want: Params{Page: 1, PageSize: 12}},
		{name: "negative page", in: Params{Page: -3, PageSize: 5}, want: Params{Page: 1, PageSize: 5}},
		{name: "size capped", in: Params{Page: 2, PageSize: 500}, want: Params{Page: 2, PageSize: 100}},
		{name: "untouched", in: Params{Page: 4, PageSize: 20}, want: Params{Page: 4, PageSize: 20}},
		{name: "page capped", in: Params{Page: math.MaxInt, PageSize: 50}, want: Params{Page: math.MaxInt / 50, PageSize: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(12, 100))
		})
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]string{"a", "b"}, Params{Page: 2, PageSize: 2}, 5)

	assert.Equal(t, []string{"a", "b"}, p.Items)
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 2, p.PageSize)
	assert.Equal(t, 5, p.TotalCount)

	empty := NewPage[int](nil, Params{Page: 1, PageSize: 10}, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}
