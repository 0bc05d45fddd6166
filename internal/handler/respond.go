package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/validation"
)

// writeOK writes {"ok":true,"message":msg,"data":...}. A nil data omits the
// field; msg may be empty.
func writeOK(w http.ResponseWriter, code int, msg string, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("ok")
	e.Bool(true)
	if msg != "" {
		e.FieldStart("message")
		e.Str(msg)
	}
	if data != nil {
		e.FieldStart("data")
		data(&e)
	}
	e.ObjEnd()
	write(w, code, e.Bytes())
}

// writeFail writes {"ok":false,"message":msg} plus the field errors, if any.
func writeFail(w http.ResponseWriter, code int, msg string, fields validation.Errors) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("ok")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(msg)
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("errors")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.ArrStart()
			for _, m := range fields[name] {
				e.Str(m)
			}
			e.ArrEnd()
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	write(w, code, e.Bytes())
}

func write(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// fail maps err onto a status and writes the failure envelope. Unexpected
// errors are logged with op and answered with a generic message.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var fields validation.Errors
	if errors.As(err, &fields) {
		writeFail(w, http.StatusBadRequest, "validation failed", fields)
		return
	}

	code, msg := classify(err)
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("op", op),
			zap.Error(err),
		)
	}
	writeFail(w, code, msg, nil)
}

var (
	errBadRequest = errors.New("malformed request")
	errTooMany    = errors.New("too many attempts, try again later")
)

func classify(err error) (int, string) {
	var (
		notFound *order.ProductNotFoundError
		quantity *order.InvalidQuantityError
		size     *order.SizeUnavailableError
		stock    *order.OutOfStockError
	)
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, stats.ErrInvalidRange),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrNoAddress),
		errors.Is(err, order.ErrNoTxID),
		errors.Is(err, user.ErrInvalidRole):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, user.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrImageNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, user.ErrHasOrders),
		errors.Is(err, product.ErrSlugTaken),
		errors.Is(err, product.ErrInUse),
		errors.Is(err, discount.ErrCodeTaken),
		errors.Is(err, order.ErrAlreadyPaid):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, errTooMany):
		return http.StatusTooManyRequests, errTooMany.Error()
	case errors.Is(err, discount.ErrInvalidCode),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrLimitReached),
		errors.Is(err, discount.ErrNotApplicable),
		errors.Is(err, discount.ErrUnknownProduct),
		errors.Is(err, product.ErrUnknownCategory),
		errors.Is(err, address.ErrUnknownCountry):
		return http.StatusUnprocessableEntity, rootMessage(err)
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity, notFound.Error()
	case errors.As(err, &quantity):
		return http.StatusUnprocessableEntity, quantity.Error()
	case errors.As(err, &size):
		return http.StatusUnprocessableEntity, size.Error()
	case errors.As(err, &stock):
		return http.StatusConflict, stock.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// rootMessage strips wrapping context so that clients see the sentinel text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
