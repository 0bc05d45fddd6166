package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err != nil {
		fail(w, r, "list users", err)
		return
	}
	page, err := h.Users.List(r.Context(), p)
	if err != nil {
		fail(w, r, "list users", err)
		return
	}
	writeOK(w, http.StatusOK, "", encodePage(page, encodeUser))
}

// getUser answers data:null for unknown ids and for "new".
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "get user", err)
		return
	}
	writeOK(w, http.StatusOK, "", nullable(u, encodeUser))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUserUpdate(r)
	if err != nil {
		fail(w, r, "update user", err)
		return
	}
	u, err := h.Users.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, r, "update user", err)
		return
	}
	writeOK(w, http.StatusOK, "User updated successfully", func(e *jx.Encoder) { encodeUser(e, u) })
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == session(r).UserID {
		writeFail(w, http.StatusConflict, "cannot delete your own account", nil)
		return
	}
	if err := h.Users.Delete(r.Context(), id); err != nil {
		fail(w, r, "delete user", err)
		return
	}
	writeOK(w, http.StatusOK, "User deleted successfully", nil)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var role auth.Role
	if err := decodeBody(r, fields{"role": text(&role)}); err != nil {
		fail(w, r, "change role", err)
		return
	}
	if !role.Valid() {
		fail(w, r, "change role", user.ErrInvalidRole)
		return
	}
	if err := h.Users.ChangeRole(r.Context(), chi.URLParam(r, "id"), role); err != nil {
		fail(w, r, "change role", err)
		return
	}
	writeOK(w, http.StatusOK, "Role updated", nil)
}
