package handler

import (
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/pkg/pagination"
)

func field(e *jx.Encoder, name string, v func(e *jx.Encoder)) {
	e.FieldStart(name)
	v(e)
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

func intField(e *jx.Encoder, name string, v int) {
	e.FieldStart(name)
	e.Int(v)
}

func boolField(e *jx.Encoder, name string, v bool) {
	e.FieldStart(name)
	e.Bool(v)
}

func moneyField(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	e.Num(jx.Num(v.StringFixed(2)))
}

func timeField(e *jx.Encoder, name string, t time.Time) {
	e.FieldStart(name)
	e.Str(t.UTC().Format(time.RFC3339))
}

func optTimeField(e *jx.Encoder, name string, t *time.Time) {
	e.FieldStart(name)
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func strsField(e *jx.Encoder, name string, v []string) {
	e.FieldStart(name)
	e.ArrStart()
	for _, s := range v {
		e.Str(s)
	}
	e.ArrEnd()
}

func encodeArray[T any](items []T, enc func(e *jx.Encoder, v *T)) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			enc(e, &items[i])
		}
		e.ArrEnd()
	}
}

func encodePage[T any](p pagination.Page[T], enc func(e *jx.Encoder, v *T)) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "items", encodeArray(p.Items, enc))
		intField(e, "currentPage", p.CurrentPage)
		intField(e, "totalPages", p.TotalPages)
		intField(e, "pageSize", p.PageSize)
		intField(e, "totalCount", p.TotalCount)
		e.ObjEnd()
	}
}

// nullable encodes v or null.
func nullable[T any](v *T, enc func(e *jx.Encoder, v *T)) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		if v == nil {
			e.Null()
			return
		}
		enc(e, v)
	}
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.ObjStart()
	strField(e, "id", u.ID)
	strField(e, "name", u.Name)
	strField(e, "email", u.Email)
	optTimeField(e, "emailVerified", u.EmailVerified)
	strField(e, "role", string(u.Role))
	strField(e, "image", u.Image)
	timeField(e, "createdAt", u.CreatedAt)
	e.ObjEnd()
}

func encodeSession(e *jx.Encoder, s *auth.Session) {
	e.ObjStart()
	strField(e, "id", s.UserID)
	strField(e, "name", s.Name)
	strField(e, "email", s.Email)
	strField(e, "role", string(s.Role))
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.ObjStart()
	strField(e, "firstName", a.FirstName)
	strField(e, "lastName", a.LastName)
	strField(e, "address", a.Address)
	strField(e, "address2", a.Address2)
	strField(e, "postalCode", a.PostalCode)
	strField(e, "city", a.City)
	strField(e, "country", a.Country)
	strField(e, "phone", a.Phone)
	e.ObjEnd()
}

func encodeCountry(e *jx.Encoder, c *address.Country) {
	e.ObjStart()
	strField(e, "id", c.ID)
	strField(e, "name", c.Name)
	e.ObjEnd()
}

func encodeCategory(e *jx.Encoder, c *product.Category) {
	e.ObjStart()
	strField(e, "id", c.ID)
	strField(e, "name", c.Name)
	e.ObjEnd()
}

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(u string) string {
	if h.imageBaseURL == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(u, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	h.productFields(e, p)
	e.ObjEnd()
}

func (h *Handler) productFields(e *jx.Encoder, p *product.Product) {
	strField(e, "id", p.ID)
	strField(e, "title", p.Title)
	strField(e, "slug", p.Slug)
	strField(e, "description", p.Description)
	moneyField(e, "price", p.Price)
	intField(e, "inStock", p.InStock)
	strsField(e, "sizes", p.Sizes)
	strsField(e, "tags", p.Tags)
	strField(e, "gender", string(p.Gender))
	strField(e, "categoryId", p.CategoryID)
	strField(e, "category", p.Category)
	field(e, "images", encodeArray(p.Images, h.encodeImage))
}

func (h *Handler) encodeImage(e *jx.Encoder, img *product.Image) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(img.ID)
	strField(e, "url", h.imageURL(img.URL))
	e.ObjEnd()
}

func (h *Handler) encodeSales(e *jx.Encoder, s *product.Sales) {
	e.ObjStart()
	h.productFields(e, &s.Product)
	intField(e, "totalSold", s.TotalSold)
	intField(e, "orders", s.Orders)
	moneyField(e, "revenue", s.Revenue)
	e.ObjEnd()
}

func encodeDiscount(e *jx.Encoder, c *discount.Code) {
	e.ObjStart()
	strField(e, "id", c.ID)
	strField(e, "code", c.Code)
	intField(e, "discountAmount", c.DiscountAmount)
	strField(e, "discountType", string(c.DiscountType))
	intField(e, "uses", c.Uses)
	boolField(e, "isActive", c.IsActive)
	boolField(e, "allProducts", c.AllProducts)
	strsField(e, "productIds", c.ProductIDs)
	strsField(e, "products", c.ProductTitles)
	e.FieldStart("limit")
	if c.Limit == nil {
		e.Null()
	} else {
		e.Int(*c.Limit)
	}
	optTimeField(e, "expiresAt", c.ExpiresAt)
	timeField(e, "createdAt", c.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	if o.ID != "" {
		strField(e, "id", o.ID)
		strField(e, "userId", o.UserID)
		if o.UserEmail != "" {
			strField(e, "userEmail", o.UserEmail)
		}
	}
	moneyField(e, "subTotal", o.SubTotal)
	moneyField(e, "tax", o.Tax)
	moneyField(e, "discount", o.Discount)
	moneyField(e, "total", o.Total)
	intField(e, "itemsInOrder", o.ItemsInOrder)
	if o.DiscountCodeID != "" {
		strField(e, "discountCodeId", o.DiscountCodeID)
	}
	if o.ID != "" {
		boolField(e, "isPaid", o.IsPaid)
		optTimeField(e, "paidAt", o.PaidAt)
		strField(e, "transactionId", o.TransactionID)
		timeField(e, "createdAt", o.CreatedAt)
	}
	field(e, "items", encodeArray(o.Items, func(e *jx.Encoder, it *order.Item) {
		e.ObjStart()
		strField(e, "productId", it.ProductID)
		intField(e, "quantity", it.Quantity)
		strField(e, "size", it.Size)
		moneyField(e, "price", it.Price)
		if it.Title != "" {
			strField(e, "title", it.Title)
			strField(e, "slug", it.Slug)
		}
		if it.Image != "" {
			strField(e, "image", h.imageURL(it.Image))
		}
		e.ObjEnd()
	}))
	if o.Address != nil {
		field(e, "address", func(e *jx.Encoder) { encodeAddress(e, o.Address) })
	}
	e.ObjEnd()
}

func encodeProductSales(e *jx.Encoder, p *stats.ProductSales) {
	e.ObjStart()
	strField(e, "id", p.ProductID)
	strField(e, "name", p.Name)
	strField(e, "description", p.Description)
	intField(e, "inStock", p.InStock)
	moneyField(e, "price", p.Price)
	strsField(e, "sizes", p.Sizes)
	strField(e, "slug", p.Slug)
	strsField(e, "tags", p.Tags)
	strField(e, "gender", p.Gender)
	strField(e, "category", p.Category)
	intField(e, "sales", p.Sales)
	moneyField(e, "totalRevenue", p.Revenue)
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s *stats.Summary) {
	e.ObjStart()
	intField(e, "totalUsers", s.TotalUsers)
	intField(e, "newUsersThisMonth", s.NewUsersThisMonth)
	intField(e, "totalOrders", s.TotalOrders)
	intField(e, "ordersThisMonth", s.OrdersThisMonth)
	intField(e, "totalProducts", s.TotalProducts)
	intField(e, "lowStockProducts", s.LowStockProducts)
	moneyField(e, "totalRevenue", s.TotalRevenue)
	moneyField(e, "revenueThisMonth", s.RevenueThisMonth)
	field(e, "topSellingProducts", encodeArray(s.TopSellingProducts, encodeProductSales))
	field(e, "salesByCategory", encodeArray(s.SalesByCategory, func(e *jx.Encoder, c *stats.CategorySales) {
		e.ObjStart()
		strField(e, "category", c.Category)
		intField(e, "sales", c.Sales)
		e.ObjEnd()
	}))
	e.ObjEnd()
}

func encodePerDate(e *jx.Encoder, p *stats.PerDate) {
	e.ObjStart()
	timeField(e, "start", p.Start)
	timeField(e, "end", p.End)
	field(e, "products", encodeArray(p.Products, encodeProductSales))
	field(e, "orders", encodeArray(p.Orders, func(e *jx.Encoder, o *stats.OrderRevenue) {
		e.ObjStart()
		strField(e, "id", o.OrderID)
		strField(e, "userId", o.UserID)
		strField(e, "userName", o.UserName)
		strField(e, "userEmail", o.UserEmail)
		moneyField(e, "total", o.Total)
		boolField(e, "isPaid", o.IsPaid)
		timeField(e, "createdAt", o.CreatedAt)
		intField(e, "items", o.Items)
		moneyField(e, "totalRevenue", o.TotalRevenue)
		e.ObjEnd()
	}))
	field(e, "users", encodeArray(p.Users, func(e *jx.Encoder, u *stats.UserSpend) {
		e.ObjStart()
		strField(e, "id", u.UserID)
		strField(e, "name", u.Name)
		strField(e, "email", u.Email)
		strField(e, "role", u.Role)
		intField(e, "totalOrders", u.TotalOrders)
		moneyField(e, "totalSpent", u.TotalSpent)
		e.ObjEnd()
	}))
	e.ObjEnd()
}
