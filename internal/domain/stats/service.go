package stats

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("range end before start")

// DefaultLowStockThreshold is the stock below which a product counts as low.
const DefaultLowStockThreshold = 10

// Service computes dashboard statistics.
type Service struct {
	repo     Repository
	lowStock int
	now      func() time.Time
}

// NewService creates a stats Service. A non-positive lowStock selects
// DefaultLowStockThreshold.
func NewService(repo Repository, lowStock int) *Service {
	if lowStock <= 0 {
		lowStock = DefaultLowStockThreshold
	}
	return &Service{repo: repo, lowStock: lowStock, now: time.Now}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Summary returns the dashboard. Product and category sales count order lines
// inside r, which defaults to all time up to now; the "this month" figures
// always start at the first day of the current month.
func (s *Service) Summary(ctx context.Context, r Range) (*Summary, error) {
	now := s.now()
	month := monthStart(now)
	if r.Start.IsZero() {
		r.Start = time.Unix(0, 0).UTC()
	}
	if r.End.IsZero() {
		r.End = now
	}
	if r.End.Before(r.Start) {
		return nil, ErrInvalidRange
	}

	var (
		out          Summary
		paidAll      []decimal.Decimal
		paidMonth    []decimal.Decimal
		productLines []ProductLine
		categories   []string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(load(&out.TotalUsers, "count users", func() (int, error) {
		return s.repo.CountUsers(ctx)
	}))
	g.Go(load(&out.NewUsersThisMonth, "count active users", func() (int, error) {
		return s.repo.CountUsersWithOrdersSince(ctx, month)
	}))
	g.Go(load(&out.TotalOrders, "count orders", func() (int, error) {
		return s.repo.CountOrders(ctx, time.Time{})
	}))
	g.Go(load(&out.OrdersThisMonth, "count orders this month", func() (int, error) {
		return s.repo.CountOrders(ctx, month)
	}))
	g.Go(load(&out.TotalProducts, "count products", func() (int, error) {
		return s.repo.CountProducts(ctx)
	}))
	g.Go(load(&out.LowStockProducts, "count low stock", func() (int, error) {
		return s.repo.CountLowStock(ctx, s.lowStock)
	}))
	g.Go(load(&paidAll, "paid totals", func() ([]decimal.Decimal, error) {
		return s.repo.PaidTotals(ctx, time.Time{})
	}))
	g.Go(load(&paidMonth, "paid totals this month", func() ([]decimal.Decimal, error) {
		return s.repo.PaidTotals(ctx, month)
	}))
	g.Go(load(&productLines, "product lines", func() ([]ProductLine, error) {
		return s.repo.ProductLines(ctx, r)
	}))
	g.Go(load(&categories, "category names", func() ([]string, error) {
		return s.repo.CategoryNames(ctx)
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.TotalRevenue = sum(paidAll)
	out.RevenueThisMonth = sum(paidMonth)
	out.TopSellingProducts = reduceProducts(productLines)
	out.SalesByCategory = reduceCategories(categories, out.TopSellingProducts)
	return &out, nil
}

// PerDate returns the per-product, per-order and per-user report for r,
// which defaults to the current month up to now.
func (s *Service) PerDate(ctx context.Context, r Range) (*PerDate, error) {
	now := s.now()
	if r.Start.IsZero() {
		r.Start = monthStart(now)
	}
	if r.End.IsZero() {
		r.End = now
	}
	if r.End.Before(r.Start) {
		return nil, ErrInvalidRange
	}

	var (
		productLines []ProductLine
		orderLines   []OrderLine
		userOrders   []UserOrder
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(load(&productLines, "product lines", func() ([]ProductLine, error) {
		return s.repo.ProductLines(gctx, r)
	}))
	g.Go(load(&orderLines, "order lines", func() ([]OrderLine, error) {
		return s.repo.OrderLines(gctx, r)
	}))
	g.Go(load(&userOrders, "user orders", func() ([]UserOrder, error) {
		return s.repo.UserOrders(gctx, r)
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PerDate{
		Start:    r.Start,
		End:      r.End,
		Products: reduceProducts(productLines),
		Orders:   reduceOrders(orderLines),
		Users:    reduceUsers(userOrders),
	}, nil
}

// load runs fn and stores its result in dst.
func load[T any](dst *T, what string, fn func() (T, error)) func() error {
	return func() error {
		v, err := fn()
		if err != nil {
			return errors.Wrap(err, what)
		}
		*dst = v
		return nil
	}
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// reduceProducts folds product lines into one entry per product, ordered by
// units sold descending and then by name.
func reduceProducts(lines []ProductLine) []ProductSales {
	index := make(map[string]int)
	out := make([]ProductSales, 0)
	for _, l := range lines {
		i, ok := index[l.ProductID]
		if !ok {
			i = len(out)
			index[l.ProductID] = i
			out = append(out, ProductSales{
				ProductID:   l.ProductID,
				Name:        l.Title,
				Description: l.Description,
				InStock:     l.InStock,
				Price:       l.Price,
				Sizes:       l.Sizes,
				Slug:        l.Slug,
				Tags:        l.Tags,
				Gender:      l.Gender,
				Category:    l.Category,
				Revenue:     decimal.Zero,
			})
		}
		if l.Quantity > 0 {
			out[i].Sales += l.Quantity
			out[i].Revenue = out[i].Revenue.Add(l.LinePrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Sales != out[b].Sales {
			return out[a].Sales > out[b].Sales
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// reduceCategories sums product sales per category, highest first. Every
// name in categories is listed, at zero when nothing in it sold.
func reduceCategories(categories []string, products []ProductSales) []CategorySales {
	index := make(map[string]int, len(categories))
	out := make([]CategorySales, 0, len(categories))
	for _, name := range categories {
		if _, ok := index[name]; ok {
			continue
		}
		index[name] = len(out)
		out = append(out, CategorySales{Category: name})
	}
	for _, p := range products {
		i, ok := index[p.Category]
		if !ok {
			i = len(out)
			index[p.Category] = i
			out = append(out, CategorySales{Category: p.Category})
		}
		out[i].Sales += p.Sales
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Sales != out[b].Sales {
			return out[a].Sales > out[b].Sales
		}
		return out[a].Category < out[b].Category
	})
	return out
}

func reduceOrders(lines []OrderLine) []OrderRevenue {
	index := make(map[string]int)
	out := make([]OrderRevenue, 0)
	for _, l := range lines {
		i, ok := index[l.OrderID]
		if !ok {
			i = len(out)
			index[l.OrderID] = i
			out = append(out, OrderRevenue{
				OrderID:      l.OrderID,
				UserID:       l.UserID,
				UserName:     l.UserName,
				UserEmail:    l.UserEmail,
				Total:        l.Total,
				IsPaid:       l.IsPaid,
				CreatedAt:    l.CreatedAt,
				TotalRevenue: decimal.Zero,
			})
		}
		out[i].Items += l.Quantity
		out[i].TotalRevenue = out[i].TotalRevenue.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return out
}

func reduceUsers(rows []UserOrder) []UserSpend {
	index := make(map[string]int)
	out := make([]UserSpend, 0)
	for _, r := range rows {
		i, ok := index[r.UserID]
		if !ok {
			i = len(out)
			index[r.UserID] = i
			out = append(out, UserSpend{
				UserID:     r.UserID,
				Name:       r.Name,
				Email:      r.Email,
				Role:       r.Role,
				TotalSpent: decimal.Zero,
			})
		}
		if r.OrderID == "" {
			continue
		}
		out[i].TotalOrders++
		out[i].TotalSpent = out[i].TotalSpent.Add(r.OrderTotal)
	}
	return out
}
