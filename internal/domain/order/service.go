package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/validation"
	"github.com/xenking/storefront/pkg/pagination"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// DefaultPageSize is the admin order list page size.
const DefaultPageSize = 10

// DefaultTaxRate is applied when Options.TaxRate is zero.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// Products fetches the products referenced by an order.
type Products interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Discounts prices a discount code against cart lines.
type Discounts interface {
	Quote(ctx context.Context, code string, lines []discount.Line) (*discount.Quote, error)
}

// Addresses validates shipping addresses.
type Addresses interface {
	Check(ctx context.Context, a address.Address) error
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID       string
	Items        []Item
	Address      *address.Address
	DiscountCode string
}

// Options configures a Service.
type Options struct {
	TaxRate        decimal.Decimal
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.TaxRate.IsZero() {
		o.TaxRate = DefaultTaxRate
	}
	if o.MeterProvider == nil {
		o.MeterProvider = otel.GetMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
}

// Service encapsulates order placement and lookup.
type Service struct {
	products  Products
	discounts Discounts
	addresses Addresses
	orders    Repository
	taxRate   decimal.Decimal
	now       func() time.Time

	tracer     trace.Tracer
	placed     metric.Int64Counter
	redemption metric.Int64Counter
	revenue    metric.Float64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products Products,
	discounts Discounts,
	addresses Addresses,
	orders Repository,
	opts Options,
) (*Service, error) {
	opts.setDefaults()
	meter := opts.MeterProvider.Meter(instrumentationName)

	s := &Service{
		products:  products,
		discounts: discounts,
		addresses: addresses,
		orders:    orders,
		taxRate:   opts.TaxRate,
		now:       time.Now,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
	}

	var err error
	if s.placed, err = meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed")
	}
	if s.redemption, err = meter.Int64Counter("storefront.discounts.redeemed",
		metric.WithDescription("Discount codes redeemed in placed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "discounts.redeemed")
	}
	if s.revenue, err = meter.Float64Counter("storefront.orders.revenue",
		metric.WithDescription("Total of placed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.revenue")
	}
	return s, nil
}

// PlaceOrder validates the cart, fetches products in a single batch, checks
// stock, prices the order and persists it.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Address == nil {
		return nil, ErrNoAddress
	}
	if err := s.addresses.Check(ctx, *req.Address); err != nil {
		return nil, err
	}

	o, err := s.price(ctx, req.Items, req.DiscountCode)
	if err != nil {
		return nil, err
	}
	now := s.now()
	o.ID = uuid.New().String()
	o.UserID = req.UserID
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Address = req.Address
	discountID := o.DiscountCodeID

	if err := s.orders.Place(ctx, o); err != nil {
		var oos *OutOfStockError
		if errors.As(err, &oos) || errors.Is(err, discount.ErrLimitReached) {
			return nil, err
		}
		return nil, errors.Wrap(err, "place order")
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("discounted", discountID != "")))
	s.revenue.Add(ctx, o.Total.InexactFloat64())
	if discountID != "" {
		s.redemption.Add(ctx, 1)
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	return o, nil
}

// Preview prices items and the optional discount code like PlaceOrder does,
// without reserving stock or recording a discount use.
func (s *Service) Preview(ctx context.Context, items []Item, discountCode string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	return s.price(ctx, items, discountCode)
}

// price validates the lines against the catalog and computes the totals.
func (s *Service) price(ctx context.Context, lines []Item, discountCode string) (*Order, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, item := range lines {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if errs := validation.Var("size", item.Size, "required,size"); len(errs) > 0 {
			return nil, &SizeUnavailableError{ProductID: item.ProductID, Size: item.Size}
		}
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Quantities of the same product in different sizes share one stock.
	requested := make(map[string]int, len(ids))
	items := make([]Item, len(lines))
	discountLines := make([]discount.Line, len(lines))
	subtotal := decimal.Zero
	count := 0
	for i, item := range lines {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !p.HasSize(item.Size) {
			return nil, &SizeUnavailableError{ProductID: p.ID, Size: item.Size}
		}
		requested[p.ID] += item.Quantity

		items[i] = Item{
			ProductID: p.ID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Price:     p.Price,
			Title:     p.Title,
			Slug:      p.Slug,
		}
		if len(p.Images) > 0 {
			items[i].Image = p.Images[0].URL
		}
		discountLines[i] = discount.Line{ProductID: p.ID, Price: p.Price, Quantity: item.Quantity}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	for _, id := range ids {
		p := byID[id]
		if requested[id] > p.InStock {
			return nil, &OutOfStockError{ProductID: id, Title: p.Title, Requested: requested[id], Available: p.InStock}
		}
	}

	discountAmount := decimal.Zero
	discountID := ""
	if discountCode != "" {
		q, err := s.discounts.Quote(ctx, discountCode, discountLines)
		if err != nil {
			return nil, errors.Wrap(err, "apply discount")
		}
		discountAmount = q.Amount
		discountID = q.Code.ID
	}

	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(s.taxRate).Round(2)
	total := subtotal.Add(tax).Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Order{
		SubTotal:       subtotal,
		Tax:            tax,
		Discount:       discountAmount.Round(2),
		Total:          total.Round(2),
		ItemsInOrder:   count,
		DiscountCodeID: discountID,
		Items:          items,
	}, nil
}

// Get returns order id if the session owns it or is an admin.
func (s *Service) Get(ctx context.Context, id string, sess auth.Session) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != sess.UserID && !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListByUser returns the orders of userID, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return orders, nil
}

// List returns one page of all orders, newest first.
func (s *Service) List(ctx context.Context, p pagination.Params) (pagination.Page[Order], error) {
	p = p.Normalize(DefaultPageSize, 100)

	orders, err := s.orders.List(ctx, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[Order]{}, errors.Wrap(err, "list orders")
	}
	total, err := s.orders.Count(ctx)
	if err != nil {
		return pagination.Page[Order]{}, errors.Wrap(err, "count orders")
	}
	return pagination.NewPage(orders, p, total), nil
}

// SetTransactionID records the payment provider transaction of order id.
func (s *Service) SetTransactionID(ctx context.Context, id, transactionID string) error {
	if transactionID == "" {
		return ErrNoTxID
	}
	if err := s.orders.SetTransactionID(ctx, id, transactionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "set transaction id")
	}
	return nil
}

// MarkPaid flags order id as paid now.
func (s *Service) MarkPaid(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, ErrAlreadyPaid
	}
	now := s.now()
	if err := s.orders.MarkPaid(ctx, id, now); err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}
	o.IsPaid = true
	o.PaidAt = &now
	return o, nil
}
