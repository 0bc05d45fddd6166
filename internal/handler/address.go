package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/address"
)

func (h *Handler) listCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.Addresses.Countries(r.Context())
	if err != nil {
		fail(w, r, "list countries", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodeArray(countries, encodeCountry))
}

// getAddress returns the caller's saved address or data:null.
func (h *Handler) getAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.Addresses.Get(r.Context(), session(r).UserID)
	if err != nil {
		fail(w, r, "get address", err)
		return
	}
	writeOK(w, http.StatusOK, "", nullable(a, encodeAddress))
}

func (h *Handler) setAddress(w http.ResponseWriter, r *http.Request) {
	var a address.Address
	if err := decodeBody(r, addressFields(&a)); err != nil {
		fail(w, r, "set address", err)
		return
	}
	saved, err := h.Addresses.Set(r.Context(), session(r).UserID, a)
	if err != nil {
		fail(w, r, "set address", err)
		return
	}
	writeOK(w, http.StatusOK, "Address saved", func(e *jx.Encoder) { encodeAddress(e, saved) })
}

func (h *Handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.Addresses.Delete(r.Context(), session(r).UserID); err != nil {
		fail(w, r, "delete address", err)
		return
	}
	writeOK(w, http.StatusOK, "Address deleted", nil)
}
