package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/validation"
	"github.com/xenking/storefront/pkg/httpmiddleware"
	"github.com/xenking/storefront/pkg/pagination"
)

// --- Mock implementations ---
//
// Each mock embeds its interface so that unexpected calls panic.

type mockUsers struct {
	Users
	user      *user.User
	err       error
	lastID    string
	lastReq   user.UpdateRequest
	authCalls int
}

func (m *mockUsers) Register(_ context.Context, req user.RegisterRequest) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &user.User{ID: "u-new", Name: req.Name, Email: req.Email, Role: auth.RoleUser}, nil
}

func (m *mockUsers) Authenticate(_ context.Context, _, _ string) (*user.User, error) {
	m.authCalls++
	return m.user, m.err
}

func (m *mockUsers) Get(_ context.Context, id string) (*user.User, error) {
	m.lastID = id
	return m.user, m.err
}

func (m *mockUsers) Update(_ context.Context, id string, req user.UpdateRequest) (*user.User, error) {
	m.lastID, m.lastReq = id, req
	if m.err != nil {
		return nil, m.err
	}
	return &user.User{ID: id, Name: req.Name, Email: req.Email, Role: req.Role}, nil
}

func (m *mockUsers) List(_ context.Context, p pagination.Params) (pagination.Page[user.User], error) {
	return pagination.NewPage([]user.User{*m.user}, p.Normalize(10, 100), 1), m.err
}

func (m *mockUsers) Delete(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

type mockAddresses struct {
	Addresses
	saved *address.Address
	err   error
}

func (m *mockAddresses) Get(_ context.Context, _ string) (*address.Address, error) {
	return m.saved, m.err
}

func (m *mockAddresses) Set(_ context.Context, _ string, a address.Address) (*address.Address, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.saved = &a
	return &a, nil
}

type mockProducts struct {
	Products
	product  *product.Product
	lastForm product.Form
	err      error
}

func (m *mockProducts) GetBySlug(_ context.Context, _ string) (*product.Product, error) {
	return m.product, m.err
}

func (m *mockProducts) Save(_ context.Context, f product.Form) (*product.Product, error) {
	m.lastForm = f
	if m.err != nil {
		return nil, m.err
	}
	return f.Product(), nil
}

type mockDiscounts struct {
	Discounts
	lastForm discount.Form
	err      error
}

func (m *mockDiscounts) Add(_ context.Context, f discount.Form) (*discount.Code, error) {
	m.lastForm = f
	if m.err != nil {
		return nil, m.err
	}
	return &discount.Code{ID: "d1", Code: f.Code, DiscountAmount: f.DiscountAmount, DiscountType: f.DiscountType, Limit: f.Limit}, nil
}

type mockOrders struct {
	Orders
	order       *order.Order
	err         error
	lastReq     order.PlaceOrderRequest
	lastItems   []order.Item
	lastCode    string
	lastSess    auth.Session
	previewHits int
}

func (m *mockOrders) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.Order, error) {
	m.lastReq = req
	return m.order, m.err
}

func (m *mockOrders) Get(_ context.Context, _ string, sess auth.Session) (*order.Order, error) {
	m.lastSess = sess
	return m.order, m.err
}

func (m *mockOrders) Preview(_ context.Context, items []order.Item, code string) (*order.Order, error) {
	m.previewHits++
	m.lastItems, m.lastCode = items, code
	return m.order, m.err
}

type mockStats struct {
	Stats
	lastRange stats.Range
}

func (m *mockStats) Summary(_ context.Context, r stats.Range) (*stats.Summary, error) {
	m.lastRange = r
	return &stats.Summary{TotalOrders: 3, TotalRevenue: decimal.RequireFromString("42.5")}, nil
}

type mockAPIKeys struct {
	sess auth.Session
	err  error
}

func (m *mockAPIKeys) Authenticate(_ context.Context, _ string) (auth.Session, error) {
	return m.sess, m.err
}

// --- Helpers ---

var testTokens = auth.NewTokens([]byte("test-secret"), time.Hour)

type testEnv struct {
	users     *mockUsers
	addresses *mockAddresses
	products  *mockProducts
	discounts *mockDiscounts
	orders    *mockOrders
	stats     *mockStats
	apiKeys   *mockAPIKeys
	throttle  *httpmiddleware.Throttle
	handler   http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:     &mockUsers{},
		addresses: &mockAddresses{},
		products:  &mockProducts{},
		discounts: &mockDiscounts{},
		orders:    &mockOrders{},
		stats:     &mockStats{},
		apiKeys:   &mockAPIKeys{err: auth.ErrInvalidAPIKey},
		throttle:  httpmiddleware.NewThrottle(rate.Every(time.Hour), 2),
	}
	h := New(Config{ImageBaseURL: "https://cdn.example.com/img"}, Deps{
		Users:         env.users,
		Addresses:     env.addresses,
		Products:      env.products,
		Discounts:     env.discounts,
		Orders:        env.orders,
		Stats:         env.stats,
		Tokens:        testTokens,
		APIKeys:       env.apiKeys,
		LoginThrottle: env.throttle,
	})
	env.handler = h.Routes()
	return env
}

func token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, _, err := testTokens.Issue(auth.Session{UserID: "u-" + string(role), Email: string(role) + "@example.com", Role: role})
	require.NoError(t, err)
	return tok
}

func (env *testEnv) do(t *testing.T, method, target, body string, opts ...func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) func(r *http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

// --- Tests ---

func TestNotFoundEnvelope(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":false,"message":"not found"}`, rec.Body.String())
}

func TestAuthorization(t *testing.T) {
	admin := &user.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: auth.RoleAdmin}

	tests := []struct {
		name     string
		opts     []func(r *http.Request)
		apiKey   *mockAPIKeys
		wantCode int
	}{
		{
			name:     "anonymous",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "user token",
			opts:     []func(r *http.Request){bearer(token(t, auth.RoleUser))},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin token",
			opts:     []func(r *http.Request){bearer(token(t, auth.RoleAdmin))},
			wantCode: http.StatusOK,
		},
		{
			name:     "garbage bearer",
			opts:     []func(r *http.Request){bearer("garbage")},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "admin cookie",
			opts: []func(r *http.Request){func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "storefront_session", Value: token(t, auth.RoleAdmin)})
			}},
			wantCode: http.StatusOK,
		},
		{
			name: "valid api key",
			opts: []func(r *http.Request){func(r *http.Request) {
				r.Header.Set(APIKeyHeader, "k1")
			}},
			apiKey:   &mockAPIKeys{sess: auth.Session{UserID: "apikey:ci", Role: auth.RoleAdmin}},
			wantCode: http.StatusOK,
		},
		{
			name: "unknown api key",
			opts: []func(r *http.Request){func(r *http.Request) {
				r.Header.Set(APIKeyHeader, "k2")
			}},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.users.user = admin
			if tt.apiKey != nil {
				*env.apiKeys = *tt.apiKey
			}

			rec := env.do(t, http.MethodGet, "/api/users", "", tt.opts...)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestAccountRoutesRefuseAPIKeys(t *testing.T) {
	withKey := func(r *http.Request) { r.Header.Set(APIKeyHeader, "k1") }

	tests := []struct {
		method, target, body string
	}{
		{method: http.MethodPut, target: "/api/me", body: `{"name":"CI","email":"ci@example.com"}`},
		{method: http.MethodGet, target: "/api/address"},
		{method: http.MethodPut, target: "/api/address", body: `{"firstName":"Ci"}`},
		{method: http.MethodDelete, target: "/api/address"},
		{method: http.MethodPost, target: "/api/orders", body: `{"items":[{"productId":"p1","quantity":1,"size":"M"}]}`},
		{method: http.MethodGet, target: "/api/orders/mine"},
		{method: http.MethodPost, target: "/api/discounts/apply", body: `{"code":"X","items":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			env := newEnv(t)
			env.apiKeys.sess, env.apiKeys.err = auth.Session{UserID: "apikey:ci", Role: auth.RoleAdmin}, nil

			rec := env.do(t, tt.method, tt.target, tt.body, withKey)
			assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"ok":false`)
		})
	}

	t.Run("admin reads stay open", func(t *testing.T) {
		env := newEnv(t)
		env.apiKeys.sess, env.apiKeys.err = auth.Session{UserID: "apikey:ci", Role: auth.RoleAdmin}, nil
		env.orders.order = &order.Order{ID: "o1", UserID: "u1"}

		rec := env.do(t, http.MethodGet, "/api/orders/o1", "", withKey)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, env.orders.lastSess.IsAPIKey())
	})
}

func TestAPIKeyLookupFailure(t *testing.T) {
	env := newEnv(t)
	env.apiKeys.err = errors.Wrap(errors.New("connection refused"), "find api key")

	rec := env.do(t, http.MethodGet, "/api/users", "", func(r *http.Request) { r.Header.Set(APIKeyHeader, "k1") })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"message":"internal error"}`, rec.Body.String())
}

func TestStaleCookieIsCleared(t *testing.T) {
	env := newEnv(t)
	env.products.err = product.ErrNotFound

	req := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "storefront_session", Value: "expired"})
	}
	rec := env.do(t, http.MethodGet, "/api/products/missing", "", req)

	// Public routes keep working; the product lookup decides the status.
	assert.Equal(t, http.StatusNotFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "storefront_session", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRegister(t *testing.T) {
	t.Run("validation errors", func(t *testing.T) {
		env := newEnv(t)
		env.users.err = validation.Errors{"email": {"must be a valid email"}}

		rec := env.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ann","email":"nope","password":"secret1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"ok":false,"message":"validation failed","errors":{"email":["must be a valid email"]}}`, rec.Body.String())
	})

	t.Run("signs in", func(t *testing.T) {
		env := newEnv(t)

		rec := env.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ann","email":"ann@example.com","password":"secret1"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"email":"ann@example.com"`)
		assert.NotContains(t, rec.Body.String(), "password")

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].HttpOnly)

		sess, err := testTokens.Parse(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "u-new", sess.UserID)
	})

	t.Run("email taken", func(t *testing.T) {
		env := newEnv(t)
		env.users.err = errors.Wrap(user.ErrEmailTaken, "create user")

		rec := env.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ann","email":"ann@example.com","password":"secret1"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"ok":false,"message":"email already registered"}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newEnv(t)

		rec := env.do(t, http.MethodPost, "/api/auth/register", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginThrottle(t *testing.T) {
	env := newEnv(t)
	env.users.err = user.ErrInvalidCredentials

	body := `{"email":"Ann@Example.com","password":"wrong"}`
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com ","password":"wrong"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, env.users.authCalls)

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"bob@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginResetsThrottle(t *testing.T) {
	env := newEnv(t)

	env.users.err = user.ErrInvalidCredentials
	env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"wrong"}`)

	env.users.err = nil
	env.users.user = &user.User{ID: "u1", Email: "ann@example.com", Role: auth.RoleUser}
	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"right"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env.users.err = user.ErrInvalidCredentials
	for i := 0; i < 2; i++ {
		rec = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestMe(t *testing.T) {
	t.Run("api key session", func(t *testing.T) {
		env := newEnv(t)
		env.apiKeys.sess, env.apiKeys.err = auth.Session{UserID: "apikey:ci", Name: "ci", Role: auth.RoleAdmin}, nil

		rec := env.do(t, http.MethodGet, "/api/auth/me", "", func(r *http.Request) { r.Header.Set(APIKeyHeader, "k") })
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"apikey:ci"`)
	})

	t.Run("deleted account", func(t *testing.T) {
		env := newEnv(t)

		rec := env.do(t, http.MethodGet, "/api/auth/me", "", bearer(token(t, auth.RoleUser)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUpdateMeKeepsRole(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPut, "/api/me", `{"name":"Ann","email":"ann@example.com","role":"admin"}`, bearer(token(t, auth.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "u-user", env.users.lastID)
	assert.Equal(t, auth.RoleUser, env.users.lastReq.Role)
}

func TestGetUserNew(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/users/new", "", bearer(token(t, auth.RoleAdmin)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"data":null}`, rec.Body.String())
	assert.Equal(t, "new", env.users.lastID)
}

func TestDeleteSelf(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/users/u-admin", "", bearer(token(t, auth.RoleAdmin)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, env.users.lastID)
}

func TestGetProduct(t *testing.T) {
	env := newEnv(t)
	env.products.product = &product.Product{
		ID:     "p1",
		Title:  "Tee",
		Slug:   "tee",
		Price:  decimal.RequireFromString("19.9"),
		Sizes:  []string{"M"},
		Tags:   []string{"shirt"},
		Images: []product.Image{{ID: 7, URL: "tee.jpg"}, {ID: 8, URL: "https://other.example.com/x.jpg"}},
	}

	rec := env.do(t, http.MethodGet, "/api/products/tee", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"price":19.90`)
	assert.Contains(t, body, `"url":"https://cdn.example.com/img/tee.jpg"`)
	assert.Contains(t, body, `"url":"https://other.example.com/x.jpg"`)

	env.products.product, env.products.err = nil, product.ErrNotFound
	rec = env.do(t, http.MethodGet, "/api/products/tee", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveProduct(t *testing.T) {
	const body = `{"id":"ignored","title":"Tee","slug":"tee","description":"d","price":"12.5","inStock":3,"sizes":["M","L"],"tags":"a, b","gender":"men","categoryId":"c1","images":[]}`

	t.Run("create", func(t *testing.T) {
		env := newEnv(t)
		rec := env.do(t, http.MethodPost, "/api/products", strings.Replace(body, `"id":"ignored",`, "", 1), bearer(token(t, auth.RoleAdmin)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.True(t, decimal.RequireFromString("12.5").Equal(env.products.lastForm.Price))
		assert.Equal(t, []string{"M", "L"}, env.products.lastForm.Sizes)
		assert.Equal(t, product.GenderMen, env.products.lastForm.Gender)
	})

	t.Run("update uses path id", func(t *testing.T) {
		env := newEnv(t)
		rec := env.do(t, http.MethodPut, "/api/products/p9", body, bearer(token(t, auth.RoleAdmin)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "p9", env.products.lastForm.ID)
	})

	t.Run("requires admin", func(t *testing.T) {
		env := newEnv(t)
		rec := env.do(t, http.MethodPost, "/api/products", body, bearer(token(t, auth.RoleUser)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestDeleteProductImageBadID(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/products/images/abc", "", bearer(token(t, auth.RoleAdmin)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddDiscount(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/discounts",
		`{"code":"SALE","discountAmount":10,"discountType":"PERCENTAGE","allProducts":false,"productIds":[],"expiresAt":"2030-01-02","limit":null}`,
		bearer(token(t, auth.RoleAdmin)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	f := env.discounts.lastForm
	assert.Equal(t, "SALE", f.Code)
	assert.Equal(t, discount.TypePercentage, f.DiscountType)
	assert.NotNil(t, f.ProductIDs)
	assert.Empty(t, f.ProductIDs)
	assert.Nil(t, f.Limit)
	require.NotNil(t, f.ExpiresAt)
	assert.Equal(t, time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), *f.ExpiresAt)
	assert.Contains(t, rec.Body.String(), `"limit":null`)
}

func TestPlaceOrder(t *testing.T) {
	saved := &address.Address{FirstName: "Ann", LastName: "Lee", Address: "1 Main", PostalCode: "1000", City: "Town", Country: "AR", Phone: "123"}
	placed := &order.Order{
		ID:       "o1",
		UserID:   "u-user",
		SubTotal: decimal.RequireFromString("10"),
		Tax:      decimal.RequireFromString("1.5"),
		Total:    decimal.RequireFromString("11.5"),
		Items:    []order.Item{{ProductID: "p1", Quantity: 1, Size: "M", Price: decimal.RequireFromString("10")}},
	}

	tests := []struct {
		name        string
		body        string
		saved       *address.Address
		err         error
		wantCode    int
		wantAddress string
	}{
		{
			name:        "address in body",
			body:        `{"items":[{"productId":"p1","quantity":1,"size":"M"}],"address":{"firstName":"Bob","country":"GB"},"discountCode":"SALE"}`,
			saved:       saved,
			wantCode:    http.StatusCreated,
			wantAddress: "Bob",
		},
		{
			name:        "falls back to saved address",
			body:        `{"items":[{"productId":"p1","quantity":1,"size":"M"}]}`,
			saved:       saved,
			wantCode:    http.StatusCreated,
			wantAddress: "Ann",
		},
		{
			name:     "out of stock",
			body:     `{"items":[{"productId":"p1","quantity":5,"size":"M"}]}`,
			saved:    saved,
			err:      &order.OutOfStockError{ProductID: "p1", Title: "Tee", Requested: 5, Available: 1},
			wantCode: http.StatusConflict,
		},
		{
			name:     "no address",
			body:     `{"items":[{"productId":"p1","quantity":1,"size":"M"}]}`,
			err:      order.ErrNoAddress,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid code",
			body:     `{"items":[{"productId":"p1","quantity":1,"size":"M"}],"discountCode":"NOPE"}`,
			saved:    saved,
			err:      errors.Wrap(discount.ErrInvalidCode, "quote"),
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.addresses.saved = tt.saved
			env.orders.order, env.orders.err = placed, tt.err

			rec := env.do(t, http.MethodPost, "/api/orders", tt.body, bearer(token(t, auth.RoleUser)))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, "u-user", env.orders.lastReq.UserID)
			if tt.wantAddress != "" {
				require.NotNil(t, env.orders.lastReq.Address)
				assert.Equal(t, tt.wantAddress, env.orders.lastReq.Address.FirstName)
			}
			if tt.wantCode == http.StatusCreated {
				assert.Contains(t, rec.Body.String(), `"total":11.50`)
			}
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	env := newEnv(t)
	env.orders.order = &order.Order{
		SubTotal: decimal.RequireFromString("30"),
		Tax:      decimal.RequireFromString("4.5"),
		Discount: decimal.RequireFromString("2.5"),
		Total:    decimal.RequireFromString("32"),
	}

	rec := env.do(t, http.MethodPost, "/api/discounts/apply",
		`{"code":"SALE","items":[{"productId":"p1","quantity":3,"size":"M"}]}`,
		bearer(token(t, auth.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SALE", env.orders.lastCode)
	require.Len(t, env.orders.lastItems, 1)
	assert.Equal(t, 3, env.orders.lastItems[0].Quantity)
	assert.NotContains(t, rec.Body.String(), `"id"`)
	assert.Contains(t, rec.Body.String(), `"discount":2.50`)

	rec = env.do(t, http.MethodPost, "/api/discounts/apply", `{"items":[]}`, bearer(token(t, auth.RoleUser)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 1, env.orders.previewHits)
}

func TestSummaryRange(t *testing.T) {
	env := newEnv(t)
	admin := bearer(token(t, auth.RoleAdmin))

	rec := env.do(t, http.MethodGet, "/api/stats/summary?start=2024-01-01&end=2024-01-31", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), env.stats.lastRange.Start)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), env.stats.lastRange.End)
	assert.Contains(t, rec.Body.String(), `"totalRevenue":42.50`)

	rec = env.do(t, http.MethodGet, "/api/stats/summary?start=yesterday", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorIsGeneric(t *testing.T) {
	env := newEnv(t)
	env.products.err = errors.New("pool closed: secret dsn")

	rec := env.do(t, http.MethodGet, "/api/products/tee", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"message":"internal error"}`, rec.Body.String())
}
