//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/internal/domain/user"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	url := fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port())

	if err := RunMigrations(ctx, url); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	// Second run must be a no-op.
	if err := RunMigrations(ctx, url); err != nil {
		log.Fatalf("migrate again: %v", err)
	}

	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	products := NewProductRepository(testPool)
	for _, c := range []product.Category{{ID: "shirts", Name: "Shirts"}, {ID: "hats", Name: "Hats"}} {
		if err := products.UpsertCategory(ctx, c); err != nil {
			log.Fatalf("category fixture: %v", err)
		}
	}
	addresses := NewAddressRepository(testPool)
	for _, c := range []address.Country{{ID: "AR", Name: "Argentina"}, {ID: "GB", Name: "United Kingdom"}} {
		if err := addresses.UpsertCountry(ctx, c); err != nil {
			log.Fatalf("country fixture: %v", err)
		}
	}

	return m.Run()
}

func newUser(t *testing.T, name string) *user.User {
	t.Helper()
	u := &user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     uuid.New().String() + "@example.com",
		Password:  "hash",
		Role:      auth.RoleUser,
		CreatedAt: time.Now(),
	}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), u))
	return u
}

func newProduct(t *testing.T, stock int, price string, images ...string) *product.Product {
	t.Helper()
	id := uuid.New().String()
	p := &product.Product{
		ID:          id,
		Title:       "Tee " + id[:8],
		Slug:        "tee_" + id[:8],
		Description: "A tee",
		Price:       decimal.RequireFromString(price),
		InStock:     stock,
		Sizes:       []string{"S", "M"},
		Tags:        []string{"shirt"},
		Gender:      product.GenderUnisex,
		CategoryID:  "shirts",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, NewProductRepository(testPool).Save(context.Background(), p, images))
	return p
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)
	u := newUser(t, "Zed")

	dup := *u
	dup.ID = uuid.New().String()
	require.ErrorIs(t, repo.Create(ctx, &dup), user.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, repo.UpdateRole(ctx, u.ID, auth.RoleAdmin))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, got.Role)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, user.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, u.ID))
	require.ErrorIs(t, repo.Delete(ctx, u.ID), user.ErrNotFound)
}

func TestAddressRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAddressRepository(testPool)
	u := newUser(t, "Addr")

	a := address.Address{FirstName: "Ada", LastName: "L", Address: "1 Main", PostalCode: "1", City: "X", Country: "AR", Phone: "123"}
	require.NoError(t, repo.Upsert(ctx, u.ID, a))
	a.City = "Y"
	require.NoError(t, repo.Upsert(ctx, u.ID, a))

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Y", got.City)

	a.Country = "ZZ"
	require.ErrorIs(t, repo.Upsert(ctx, u.ID, a), address.ErrUnknownCountry)

	require.NoError(t, repo.Delete(ctx, u.ID))
	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := repo.CountryExists(ctx, "GB")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)
	p := newProduct(t, 5, "10.50", "https://img/1.jpg", "https://img/2.jpg")

	got, err := repo.GetBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Shirts", got.Category)
	require.Len(t, got.Images, 2)
	assert.True(t, decimal.RequireFromString("10.50").Equal(got.Price))

	dup := *p
	dup.ID = uuid.New().String()
	require.ErrorIs(t, repo.Save(ctx, &dup, nil), product.ErrSlugTaken)

	bad := *p
	bad.ID = uuid.New().String()
	bad.Slug = bad.ID
	bad.CategoryID = "nope"
	require.ErrorIs(t, repo.Save(ctx, &bad, nil), product.ErrUnknownCategory)

	img, err := repo.DeleteImage(ctx, got.Images[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.jpg", img.URL)

	stock, err := repo.StockBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestOrderRepository_Place(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(testPool)
	discounts := NewDiscountRepository(testPool)
	products := NewProductRepository(testPool)

	u := newUser(t, "Buyer")
	p := newProduct(t, 3, "20.00")

	limit := 1
	code := &discount.Code{
		ID: uuid.New().String(), Code: "ONCE-" + uuid.New().String()[:6], DiscountAmount: 10,
		DiscountType: discount.TypePercentage, IsActive: true, AllProducts: true, Limit: &limit, CreatedAt: time.Now(),
	}
	require.NoError(t, discounts.Create(ctx, code))

	newOrder := func(qty int, discountID string) *order.Order {
		return &order.Order{
			ID: uuid.New().String(), UserID: u.ID,
			SubTotal: decimal.NewFromInt(int64(20 * qty)), Tax: decimal.Zero, Discount: decimal.Zero,
			Total: decimal.NewFromInt(int64(20 * qty)), ItemsInOrder: qty, DiscountCodeID: discountID,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
			Items:   []order.Item{{ProductID: p.ID, Quantity: qty, Size: "M", Price: p.Price}},
			Address: &address.Address{FirstName: "Ada", LastName: "L", Address: "1", PostalCode: "1", City: "X", Country: "AR", Phone: "1"},
		}
	}

	first := newOrder(2, code.ID)
	require.NoError(t, orders.Place(ctx, first))

	stock, err := products.StockBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)

	err = orders.Place(ctx, newOrder(1, code.ID))
	require.ErrorIs(t, err, discount.ErrLimitReached)

	past := time.Now().Add(-time.Minute)
	expired := &discount.Code{
		ID: uuid.New().String(), Code: "GONE-" + uuid.New().String()[:6], DiscountAmount: 5,
		DiscountType: discount.TypeFixed, IsActive: true, AllProducts: true, ExpiresAt: &past, CreatedAt: time.Now(),
	}
	require.NoError(t, discounts.Create(ctx, expired))
	err = orders.Place(ctx, newOrder(1, expired.ID))
	require.ErrorIs(t, err, discount.ErrExpired)

	var oos *order.OutOfStockError
	err = orders.Place(ctx, newOrder(2, ""))
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, 1, oos.Available)

	stock, err = products.StockBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, stock, "failed placements must roll back")

	got, err := orders.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.UserEmail)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Address)
	assert.Equal(t, code.ID, got.DiscountCodeID)

	require.NoError(t, orders.SetTransactionID(ctx, first.ID, "tx-1"))
	require.NoError(t, orders.MarkPaid(ctx, first.ID, time.Now()))
	got, err = orders.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, "tx-1", got.TransactionID)

	require.ErrorIs(t, NewProductRepository(testPool).Delete(ctx, p.ID), product.ErrInUse)
	require.ErrorIs(t, NewUserRepository(testPool).Delete(ctx, u.ID), user.ErrHasOrders)

	n, err := discounts.DeactivateStale(ctx, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	c, err := discounts.GetByID(ctx, code.ID)
	require.NoError(t, err)
	assert.False(t, c.IsActive)
	assert.Equal(t, 1, c.Uses)

	require.NoError(t, products.UpsertCategory(ctx, product.Category{ID: "empty_shelf", Name: "Empty Shelf"}))

	s := stats.NewService(NewStatsRepository(testPool), 10)
	summary, err := s.Summary(ctx, stats.Range{})
	require.NoError(t, err)
	assert.Contains(t, summary.SalesByCategory, stats.CategorySales{Category: "Empty Shelf"})
	assert.GreaterOrEqual(t, summary.TotalOrders, 1)
	assert.True(t, summary.TotalRevenue.GreaterThanOrEqual(decimal.NewFromInt(40)))
}

func TestDiscountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDiscountRepository(testPool)
	p := newProduct(t, 1, "5")

	c := &discount.Code{
		ID: uuid.New().String(), Code: "PICK-" + uuid.New().String()[:6], DiscountAmount: 5,
		DiscountType: discount.TypeFixed, IsActive: true, ProductIDs: []string{p.ID, p.ID}, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, got.ProductIDs)
	assert.Equal(t, []string{p.Title}, got.ProductTitles)
	assert.Nil(t, got.Limit)

	dup := *c
	dup.ID = uuid.New().String()
	require.ErrorIs(t, repo.Create(ctx, &dup), discount.ErrCodeTaken)

	bad := *c
	bad.ID = uuid.New().String()
	bad.Code = bad.ID
	bad.ProductIDs = []string{"missing"}
	require.ErrorIs(t, repo.Create(ctx, &bad), discount.ErrUnknownProduct)

	got.AllProducts = true
	got.ProductIDs = nil
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ProductIDs)

	require.NoError(t, repo.SetActive(ctx, c.ID, false))
	require.NoError(t, repo.Delete(ctx, c.ID))
	require.ErrorIs(t, repo.Delete(ctx, c.ID), discount.ErrNotFound)
}
