package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
)

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err != nil {
		fail(w, r, "list discounts", err)
		return
	}
	page, err := h.Discounts.List(r.Context(), p)
	if err != nil {
		fail(w, r, "list discounts", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodePage(page, encodeDiscount))
}

func (h *Handler) allDiscounts(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Discounts.All(r.Context())
	if err != nil {
		fail(w, r, "all discounts", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodeArray(codes, encodeDiscount))
}

func (h *Handler) getDiscount(w http.ResponseWriter, r *http.Request) {
	c, err := h.Discounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "get discount", err)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { encodeDiscount(e, c) })
}

func decodeDiscountForm(r *http.Request) (discount.Form, error) {
	var f discount.Form
	err := decodeBody(r, fields{
		"code":           text(&f.Code),
		"discountAmount": integer(&f.DiscountAmount),
		"discountType":   text(&f.DiscountType),
		"allProducts":    boolean(&f.AllProducts),
		"productIds":     texts(&f.ProductIDs),
		"expiresAt":      optTime(&f.ExpiresAt),
		"limit":          optInteger(&f.Limit),
	})
	return f, err
}

func (h *Handler) addDiscount(w http.ResponseWriter, r *http.Request) {
	f, err := decodeDiscountForm(r)
	if err != nil {
		fail(w, r, "add discount", err)
		return
	}
	c, err := h.Discounts.Add(r.Context(), f)
	if err != nil {
		fail(w, r, "add discount", err)
		return
	}
	writeOK(w, http.StatusCreated, "Discount code created", func(e *jx.Encoder) { encodeDiscount(e, c) })
}

func (h *Handler) updateDiscount(w http.ResponseWriter, r *http.Request) {
	f, err := decodeDiscountForm(r)
	if err != nil {
		fail(w, r, "update discount", err)
		return
	}
	c, err := h.Discounts.Update(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		fail(w, r, "update discount", err)
		return
	}
	writeOK(w, http.StatusOK, "Discount code updated", func(e *jx.Encoder) { encodeDiscount(e, c) })
}

func (h *Handler) toggleDiscount(w http.ResponseWriter, r *http.Request) {
	var active bool
	if err := decodeBody(r, fields{"isActive": boolean(&active)}); err != nil {
		fail(w, r, "toggle discount", err)
		return
	}
	if err := h.Discounts.Toggle(r.Context(), chi.URLParam(r, "id"), active); err != nil {
		fail(w, r, "toggle discount", err)
		return
	}
	msg := "Discount code deactivated"
	if active {
		msg = "Discount code activated"
	}
	writeOK(w, http.StatusOK, msg, nil)
}

func (h *Handler) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.Discounts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, "delete discount", err)
		return
	}
	writeOK(w, http.StatusOK, "Discount code deleted", nil)
}

// applyDiscount prices a cart with a code without placing an order.
func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		code  string
		items []order.Item
	)
	if err := decodeBody(r, fields{
		"code":  text(&code),
		"items": orderItems(&items),
	}); err != nil {
		fail(w, r, "apply discount", err)
		return
	}
	if code == "" {
		fail(w, r, "apply discount", discount.ErrInvalidCode)
		return
	}

	o, err := h.Orders.Preview(r.Context(), items, code)
	if err != nil {
		fail(w, r, "apply discount", err)
		return
	}
	writeOK(w, http.StatusOK, "Discount applied", func(e *jx.Encoder) { h.encodeOrder(e, o) })
}
