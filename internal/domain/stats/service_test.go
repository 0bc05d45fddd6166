package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mu sync.Mutex

	users, activeUsers, orders, ordersSince, products, lowStock int
	paid, paidSince                                            []decimal.Decimal
	productLines                                               []ProductLine
	orderLines                                                 []OrderLine
	userOrders                                                 []UserOrder
	categories                                                 []string

	since     []time.Time
	ranges    []Range
	lowBelow  int
	failLines error
}

func (m *mockRepo) record(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = append(m.since, t)
}

func (m *mockRepo) recordRange(r Range) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranges = append(m.ranges, r)
}

func (m *mockRepo) CountUsers(context.Context) (int, error) { return m.users, nil }

func (m *mockRepo) CountUsersWithOrdersSince(_ context.Context, since time.Time) (int, error) {
	m.record(since)
	return m.activeUsers, nil
}

func (m *mockRepo) CountOrders(_ context.Context, since time.Time) (int, error) {
	if since.IsZero() {
		return m.orders, nil
	}
	m.record(since)
	return m.ordersSince, nil
}

func (m *mockRepo) CountProducts(context.Context) (int, error) { return m.products, nil }

func (m *mockRepo) CountLowStock(_ context.Context, below int) (int, error) {
	m.mu.Lock()
	m.lowBelow = below
	m.mu.Unlock()
	return m.lowStock, nil
}

func (m *mockRepo) CategoryNames(context.Context) ([]string, error) { return m.categories, nil }

func (m *mockRepo) PaidTotals(_ context.Context, since time.Time) ([]decimal.Decimal, error) {
	if since.IsZero() {
		return m.paid, nil
	}
	return m.paidSince, nil
}

func (m *mockRepo) ProductLines(_ context.Context, r Range) ([]ProductLine, error) {
	m.recordRange(r)
	if m.failLines != nil {
		return nil, m.failLines
	}
	return m.productLines, nil
}

func (m *mockRepo) OrderLines(_ context.Context, r Range) ([]OrderLine, error) {
	m.recordRange(r)
	return m.orderLines, nil
}

func (m *mockRepo) UserOrders(_ context.Context, r Range) ([]UserOrder, error) {
	m.recordRange(r)
	return m.userOrders, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testNow = time.Date(2024, 6, 17, 15, 30, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	s := NewService(repo, 0)
	s.now = func() time.Time { return testNow }
	return s
}

func sampleLines() []ProductLine {
	return []ProductLine{
		{ProductID: "p1", Title: "Tee", Category: "Shirts", Quantity: 2, LinePrice: d("10")},
		{ProductID: "p1", Title: "Tee", Category: "Shirts", Quantity: 1, LinePrice: d("12")},
		{ProductID: "p2", Title: "Cap", Category: "Hats", Quantity: 5, LinePrice: d("3")},
		{ProductID: "p3", Title: "Jeans", Category: "Pants"},
	}
}

func TestSummary(t *testing.T) {
	repo := &mockRepo{
		users: 10, activeUsers: 3, orders: 40, ordersSince: 7, products: 25, lowStock: 4,
		paid:         []decimal.Decimal{d("10.50"), d("20.25")},
		paidSince:    []decimal.Decimal{d("5")},
		productLines: sampleLines(),
		categories:   []string{"Hats", "Pants", "Shirts", "Socks"},
	}
	svc := newTestService(repo)

	s, err := svc.Summary(context.Background(), Range{})
	require.NoError(t, err)

	assert.Equal(t, 10, s.TotalUsers)
	assert.Equal(t, 3, s.NewUsersThisMonth)
	assert.Equal(t, 40, s.TotalOrders)
	assert.Equal(t, 7, s.OrdersThisMonth)
	assert.Equal(t, 25, s.TotalProducts)
	assert.Equal(t, 4, s.LowStockProducts)
	assert.Equal(t, DefaultLowStockThreshold, repo.lowBelow)
	assert.True(t, d("30.75").Equal(s.TotalRevenue))
	assert.True(t, d("5").Equal(s.RevenueThisMonth))

	require.Len(t, s.TopSellingProducts, 3)
	assert.Equal(t, "Cap", s.TopSellingProducts[0].Name)
	assert.Equal(t, 5, s.TopSellingProducts[0].Sales)
	assert.Equal(t, "Tee", s.TopSellingProducts[1].Name)
	assert.Equal(t, 3, s.TopSellingProducts[1].Sales)
	assert.True(t, d("32").Equal(s.TopSellingProducts[1].Revenue))
	assert.Equal(t, 0, s.TopSellingProducts[2].Sales)

	assert.Equal(t, []CategorySales{
		{Category: "Hats", Sales: 5},
		{Category: "Shirts", Sales: 3},
		{Category: "Pants", Sales: 0},
		{Category: "Socks", Sales: 0},
	}, s.SalesByCategory)

	month := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, since := range repo.since {
		assert.Equal(t, month, since)
	}
	require.Len(t, repo.ranges, 1)
	assert.Equal(t, time.Unix(0, 0).UTC(), repo.ranges[0].Start)
	assert.Equal(t, testNow, repo.ranges[0].End)
}

func TestSummary_Error(t *testing.T) {
	repo := &mockRepo{failLines: errors.New("boom")}
	_, err := newTestService(repo).Summary(context.Background(), Range{})
	require.ErrorContains(t, err, "product lines")
}

func TestPerDate(t *testing.T) {
	repo := &mockRepo{
		productLines: sampleLines(),
		orderLines: []OrderLine{
			{OrderID: "o1", UserID: "u1", Total: d("50"), Quantity: 2, Price: d("10")},
			{OrderID: "o1", UserID: "u1", Total: d("50"), Quantity: 1, Price: d("12")},
			{OrderID: "o2", UserID: "u2", Total: d("15"), Quantity: 5, Price: d("3")},
		},
		userOrders: []UserOrder{
			{UserID: "u1", Name: "Ada", OrderID: "o1", OrderTotal: d("50")},
			{UserID: "u2", Name: "Bob", OrderID: "o2", OrderTotal: d("15")},
			{UserID: "u2", Name: "Bob", OrderID: "o3", OrderTotal: d("5.5")},
			{UserID: "u3", Name: "Cy"},
		},
	}
	svc := newTestService(repo)

	rep, err := svc.PerDate(context.Background(), Range{})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), rep.Start)
	assert.Equal(t, testNow, rep.End)

	require.Len(t, rep.Orders, 2)
	assert.Equal(t, "o1", rep.Orders[0].OrderID)
	assert.Equal(t, 3, rep.Orders[0].Items)
	assert.True(t, d("32").Equal(rep.Orders[0].TotalRevenue))
	assert.True(t, d("15").Equal(rep.Orders[1].TotalRevenue))

	require.Len(t, rep.Users, 3)
	assert.Equal(t, 1, rep.Users[0].TotalOrders)
	assert.Equal(t, 2, rep.Users[1].TotalOrders)
	assert.True(t, d("20.5").Equal(rep.Users[1].TotalSpent))
	assert.Equal(t, 0, rep.Users[2].TotalOrders)
	assert.True(t, decimal.Zero.Equal(rep.Users[2].TotalSpent))

	require.Len(t, rep.Products, 3)
	assert.True(t, d("15").Equal(rep.Products[0].Revenue))
}

func TestPerDate_InvalidRange(t *testing.T) {
	svc := newTestService(&mockRepo{})
	_, err := svc.PerDate(context.Background(), Range{Start: testNow, End: testNow.Add(-time.Hour)})
	require.ErrorIs(t, err, ErrInvalidRange)
}
