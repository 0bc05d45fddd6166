// Package handler exposes the storefront over HTTP. Every response is the
// JSON envelope {"ok": bool, "message": string, "data": any} with an extra
// "errors" object on validation failures.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/pkg/httpmiddleware"
	"github.com/xenking/storefront/pkg/pagination"
)

// Users is the account service.
type Users interface {
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	Update(ctx context.Context, id string, req user.UpdateRequest) (*user.User, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*user.User, error)
	List(ctx context.Context, p pagination.Params) (pagination.Page[user.User], error)
	ChangeRole(ctx context.Context, id string, role auth.Role) error
}

// Addresses is the saved address service.
type Addresses interface {
	Set(ctx context.Context, userID string, a address.Address) (*address.Address, error)
	Get(ctx context.Context, userID string) (*address.Address, error)
	Delete(ctx context.Context, userID string) error
	Countries(ctx context.Context) ([]address.Country, error)
}

// Products is the catalog service.
type Products interface {
	List(ctx context.Context, p pagination.Params, f product.Filter) (pagination.Page[product.Product], error)
	GetBySlug(ctx context.Context, slug string) (*product.Product, error)
	Stock(ctx context.Context, slug string) (int, error)
	Categories(ctx context.Context) ([]product.Category, error)
	Save(ctx context.Context, f product.Form) (*product.Product, error)
	Delete(ctx context.Context, id string) error
	DeleteImage(ctx context.Context, id int64) (*product.Image, error)
	TopSelling(ctx context.Context, limit int) ([]product.Sales, error)
	Revenue(ctx context.Context) ([]product.Sales, error)
}

// Discounts is the discount code service.
type Discounts interface {
	Add(ctx context.Context, f discount.Form) (*discount.Code, error)
	Update(ctx context.Context, id string, f discount.Form) (*discount.Code, error)
	Toggle(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, p pagination.Params) (pagination.Page[discount.Code], error)
	Get(ctx context.Context, id string) (*discount.Code, error)
	All(ctx context.Context) ([]discount.Code, error)
}

// Orders is the order service.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Preview(ctx context.Context, items []order.Item, discountCode string) (*order.Order, error)
	Get(ctx context.Context, id string, sess auth.Session) (*order.Order, error)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	List(ctx context.Context, p pagination.Params) (pagination.Page[order.Order], error)
	SetTransactionID(ctx context.Context, id, transactionID string) error
	MarkPaid(ctx context.Context, id string) (*order.Order, error)
}

// Stats is the reporting service.
type Stats interface {
	Summary(ctx context.Context, r stats.Range) (*stats.Summary, error)
	PerDate(ctx context.Context, r stats.Range) (*stats.PerDate, error)
}

// Tokens issues and verifies session tokens.
type Tokens interface {
	Issue(s auth.Session) (string, time.Time, error)
	Parse(raw string) (auth.Session, error)
}

// APIKeys resolves machine credentials.
type APIKeys interface {
	Authenticate(ctx context.Context, key string) (auth.Session, error)
}

// Config holds non-dependency settings of the Handler.
type Config struct {
	// CookieName carries the session token for browsers. Defaults to
	// "storefront_session".
	CookieName string
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
	// ImageBaseURL is prepended to relative product image paths.
	ImageBaseURL string
}

// Deps are the services a Handler delegates to. LoginThrottle may be nil.
type Deps struct {
	Users         Users
	Addresses     Addresses
	Products      Products
	Discounts     Discounts
	Orders        Orders
	Stats         Stats
	Tokens        Tokens
	APIKeys       APIKeys
	LoginThrottle *httpmiddleware.Throttle
}

// Handler serves the storefront API.
type Handler struct {
	Deps

	cookieName   string
	secureCookie bool
	imageBaseURL string
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "storefront_session"
	}
	return &Handler{
		Deps:         deps,
		cookieName:   cfg.CookieName,
		secureCookie: cfg.SecureCookie,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts the API on a new chi router under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/logout", h.logout)
			r.With(requireUser).Get("/me", h.me)
		})

		r.Get("/categories", h.listCategories)
		r.Get("/countries", h.listCountries)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/{slug}", h.getProduct)
			r.Get("/{slug}/stock", h.getStock)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/", h.saveProduct)
				r.Put("/{id}", h.saveProduct)
				r.Delete("/{id}", h.deleteProduct)
				r.Delete("/images/{imageID}", h.deleteProductImage)
				r.Get("/top-selling", h.topSelling)
				r.Get("/revenue", h.revenueByProduct)
			})
		})

		r.With(requireUser).Get("/orders/{id}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(requireAccount)

			r.Put("/me", h.updateMe)
			r.Get("/address", h.getAddress)
			r.Put("/address", h.setAddress)
			r.Delete("/address", h.deleteAddress)

			r.Post("/orders", h.placeOrder)
			r.Get("/orders/mine", h.myOrders)
			r.Post("/discounts/apply", h.applyDiscount)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/users", h.listUsers)
			r.Get("/users/{id}", h.getUser)
			r.Put("/users/{id}", h.updateUser)
			r.Delete("/users/{id}", h.deleteUser)
			r.Patch("/users/{id}/role", h.changeRole)

			r.Get("/discounts", h.listDiscounts)
			r.Get("/discounts/all", h.allDiscounts)
			r.Post("/discounts", h.addDiscount)
			r.Get("/discounts/{id}", h.getDiscount)
			r.Put("/discounts/{id}", h.updateDiscount)
			r.Patch("/discounts/{id}/active", h.toggleDiscount)
			r.Delete("/discounts/{id}", h.deleteDiscount)

			r.Get("/orders", h.listOrders)
			r.Put("/orders/{id}/transaction", h.setTransactionID)
			r.Post("/orders/{id}/paid", h.markPaid)

			r.Get("/stats/summary", h.summary)
			r.Get("/stats/per-date", h.perDate)
		})
	})
	return r
}
