package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/order"
)

// placeOrder places an order for the caller. Without an address in the body
// the saved address is used.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var (
		sess = session(r)
		req  = order.PlaceOrderRequest{UserID: sess.UserID}
		addr address.Address
	)
	if err := decodeBody(r, fields{
		"items": orderItems(&req.Items),
		"address": func(d *jx.Decoder) error {
			req.Address = &addr
			return object(addressFields(&addr))(d)
		},
		"discountCode": text(&req.DiscountCode),
	}); err != nil {
		fail(w, r, "place order", err)
		return
	}

	if req.Address == nil {
		saved, err := h.Addresses.Get(r.Context(), sess.UserID)
		if err != nil {
			fail(w, r, "place order", err)
			return
		}
		req.Address = saved
	}

	o, err := h.Orders.PlaceOrder(r.Context(), req)
	if err != nil {
		fail(w, r, "place order", err)
		return
	}
	writeOK(w, http.StatusCreated, "Order placed", func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListByUser(r.Context(), session(r).UserID)
	if err != nil {
		fail(w, r, "my orders", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodeArray(orders, h.encodeOrder))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"), session(r))
	if err != nil {
		fail(w, r, "get order", err)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err != nil {
		fail(w, r, "list orders", err)
		return
	}
	page, err := h.Orders.List(r.Context(), p)
	if err != nil {
		fail(w, r, "list orders", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodePage(page, h.encodeOrder))
}

func (h *Handler) setTransactionID(w http.ResponseWriter, r *http.Request) {
	var txID string
	if err := decodeBody(r, fields{"transactionId": text(&txID)}); err != nil {
		fail(w, r, "set transaction", err)
		return
	}
	if err := h.Orders.SetTransactionID(r.Context(), chi.URLParam(r, "id"), txID); err != nil {
		fail(w, r, "set transaction", err)
		return
	}
	writeOK(w, http.StatusOK, "Transaction recorded", nil)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "mark paid", err)
		return
	}
	writeOK(w, http.StatusOK, "Order marked as paid", func(e *jx.Encoder) { h.encodeOrder(e, o) })
}
