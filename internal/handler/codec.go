package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/pkg/pagination"
)

const maxBodySize = 1 << 20

// fields maps JSON object keys to value decoders. Unknown keys are skipped
// and null leaves the target untouched.
type fields map[string]func(d *jx.Decoder) error

func decodeBody(r *http.Request, f fields) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.Wrap(errBadRequest, "read body")
	}
	if len(body) > maxBodySize {
		return errors.Wrap(errBadRequest, "body too large")
	}
	if err := decodeObject(jx.DecodeBytes(body), f); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

func decodeObject(d *jx.Decoder, f fields) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		dec, ok := f[key]
		if !ok {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		if err := dec(d); err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

func object(f fields) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error { return decodeObject(d, f) }
}

func text[T ~string](v *T) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		s, err := d.Str()
		*v = T(s)
		return err
	}
}

func integer(v *int) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) (err error) {
		*v, err = d.Int()
		return err
	}
}

func optInteger(v **int) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		n, err := d.Int()
		if err != nil {
			return err
		}
		*v = &n
		return nil
	}
}

func boolean(v *bool) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) (err error) {
		*v, err = d.Bool()
		return err
	}
}

// texts decodes a string array; [] yields an empty, non-nil slice.
func texts(v *[]string) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		out := []string{}
		if err := d.Arr(func(d *jx.Decoder) error {
			s, err := d.Str()
			out = append(out, s)
			return err
		}); err != nil {
			return err
		}
		*v = out
		return nil
	}
}

// money accepts a JSON number or a numeric string.
func money(v *decimal.Decimal) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		var raw string
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			raw = s
		default:
			n, err := d.Num()
			if err != nil {
				return err
			}
			raw = n.String()
		}
		dec, err := decimal.NewFromString(raw)
		if err != nil {
			return errors.Wrap(err, "parse amount")
		}
		*v = dec
		return nil
	}
}

func optTime(v **time.Time) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		*v = &t
		return nil
	}
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid time %q", s)
	}
	return t, nil
}

func addressFields(a *address.Address) fields {
	return fields{
		"firstName":  text(&a.FirstName),
		"lastName":   text(&a.LastName),
		"address":    text(&a.Address),
		"address2":   text(&a.Address2),
		"postalCode": text(&a.PostalCode),
		"city":       text(&a.City),
		"country":    text(&a.Country),
		"phone":      text(&a.Phone),
	}
}

func orderItems(v *[]order.Item) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			var it order.Item
			if err := decodeObject(d, fields{
				"productId": text(&it.ProductID),
				"quantity":  integer(&it.Quantity),
				"size":      text(&it.Size),
			}); err != nil {
				return err
			}
			*v = append(*v, it)
			return nil
		})
	}
}

// pageParams reads ?page= and ?pageSize=. Missing values are left zero for
// the service to default.
func pageParams(r *http.Request) (pagination.Params, error) {
	var (
		p   pagination.Params
		err error
	)
	if p.Page, err = queryInt(r, "page"); err != nil {
		return p, err
	}
	if p.PageSize, err = queryInt(r, "pageSize"); err != nil {
		return p, err
	}
	return p, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "query %s", name)
	}
	return n, nil
}

// rangeParams reads ?start= and ?end=. A plain end date covers the whole day.
func rangeParams(r *http.Request) (stats.Range, error) {
	var rng stats.Range
	q := r.URL.Query()
	if s := q.Get("start"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return rng, errors.Wrap(errBadRequest, err.Error())
		}
		rng.Start = t
	}
	if s := q.Get("end"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return rng, errors.Wrap(errBadRequest, err.Error())
		}
		if len(s) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		rng.End = t
	}
	return rng, nil
}
