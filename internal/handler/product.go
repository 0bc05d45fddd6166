package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Products.Categories(r.Context())
	if err != nil {
		fail(w, r, "list categories", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodeArray(cats, encodeCategory))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err != nil {
		fail(w, r, "list products", err)
		return
	}
	f := product.Filter{Gender: product.Gender(r.URL.Query().Get("gender"))}

	page, err := h.Products.List(r.Context(), p, f)
	if err != nil {
		fail(w, r, "list products", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodePage(page, h.encodeProduct))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, "get product", err)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	n, err := h.Products.Stock(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, "get stock", err)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) {
		e.ObjStart()
		intField(e, "inStock", n)
		e.ObjEnd()
	})
}

// saveProduct serves both create (POST) and update (PUT /{id}). The path id
// wins over any id in the body.
func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request) {
	var f product.Form
	if err := decodeBody(r, fields{
		"id":          text(&f.ID),
		"title":       text(&f.Title),
		"slug":        text(&f.Slug),
		"description": text(&f.Description),
		"price":       money(&f.Price),
		"inStock":     integer(&f.InStock),
		"sizes":       texts(&f.Sizes),
		"tags":        text(&f.Tags),
		"gender":      text(&f.Gender),
		"categoryId":  text(&f.CategoryID),
		"images":      texts(&f.Images),
	}); err != nil {
		fail(w, r, "save product", err)
		return
	}

	code, msg := http.StatusCreated, "Product created"
	if id := chi.URLParam(r, "id"); id != "" {
		f.ID = id
		code, msg = http.StatusOK, "Product updated"
	} else if f.ID != "" {
		code, msg = http.StatusOK, "Product updated"
	}

	p, err := h.Products.Save(r.Context(), f)
	if err != nil {
		fail(w, r, "save product", err)
		return
	}
	writeOK(w, code, msg, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, "delete product", err)
		return
	}
	writeOK(w, http.StatusOK, "Product deleted", nil)
}

func (h *Handler) deleteProductImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil {
		fail(w, r, "delete image", errors.Wrap(errBadRequest, "image id"))
		return
	}
	img, err := h.Products.DeleteImage(r.Context(), id)
	if err != nil {
		fail(w, r, "delete image", err)
		return
	}
	writeOK(w, http.StatusOK, "Image deleted", func(e *jx.Encoder) { h.encodeImage(e, img) })
}

func (h *Handler) topSelling(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, "top selling", err)
		return
	}
	sales, err := h.Products.TopSelling(r.Context(), limit)
	if err != nil {
		fail(w, r, "top selling", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodeArray(sales, h.encodeSales))
}

func (h *Handler) revenueByProduct(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Products.Revenue(r.Context())
	if err != nil {
		fail(w, r, "revenue", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodeArray(sales, h.encodeSales))
}
