package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeParams(r)
	if err != nil {
		fail(w, r, "summary", err)
		return
	}
	s, err := h.Stats.Summary(r.Context(), rng)
	if err != nil {
		fail(w, r, "summary", err)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { encodeSummary(e, s) })
}

func (h *Handler) perDate(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeParams(r)
	if err != nil {
		fail(w, r, "per date", err)
		return
	}
	p, err := h.Stats.PerDate(r.Context(), rng)
	if err != nil {
		fail(w, r, "per date", err)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { encodePerDate(e, p) })
}
