package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req user.RegisterRequest
	if err := decodeBody(r, fields{
		"name":     text(&req.Name),
		"email":    text(&req.Email),
		"password": text(&req.Password),
	}); err != nil {
		fail(w, r, "register", err)
		return
	}

	u, err := h.Users.Register(r.Context(), req)
	if err != nil {
		fail(w, r, "register", err)
		return
	}
	h.respondSignedIn(w, r, http.StatusCreated, "Account created", u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if err := decodeBody(r, fields{
		"email":    text(&email),
		"password": text(&password),
	}); err != nil {
		fail(w, r, "login", err)
		return
	}

	key := strings.ToLower(strings.TrimSpace(email))
	if h.LoginThrottle != nil && !h.LoginThrottle.Allow(key) {
		fail(w, r, "login", errTooMany)
		return
	}

	u, err := h.Users.Authenticate(r.Context(), email, password)
	if err != nil {
		fail(w, r, "login", err)
		return
	}
	if h.LoginThrottle != nil {
		h.LoginThrottle.Reset(key)
	}
	h.respondSignedIn(w, r, http.StatusOK, "Signed in", u)
}

// respondSignedIn issues a session for u, sets the cookie and returns the
// token for non-browser clients.
func (h *Handler) respondSignedIn(w http.ResponseWriter, r *http.Request, code int, msg string, u *user.User) {
	token, expires, err := h.Tokens.Issue(u.Session())
	if err != nil {
		fail(w, r, "issue session", err)
		return
	}
	h.setCookie(w, token, expires)
	writeOK(w, code, msg, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "user", func(e *jx.Encoder) { encodeUser(e, u) })
		strField(e, "token", token)
		timeField(e, "expiresAt", expires)
		e.ObjEnd()
	})
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w)
	writeOK(w, http.StatusOK, "Signed out", nil)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	if sess.IsAPIKey() {
		writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { encodeSession(e, &sess) })
		return
	}

	u, err := h.Users.Get(r.Context(), sess.UserID)
	if err != nil {
		fail(w, r, "me", err)
		return
	}
	if u == nil {
		h.clearCookie(w)
		fail(w, r, "me", auth.ErrUnauthenticated)
		return
	}
	writeOK(w, http.StatusOK, "", func(e *jx.Encoder) { encodeUser(e, u) })
}

// updateMe lets a user edit their own profile; the role cannot change here.
func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	req, err := decodeUserUpdate(r)
	if err != nil {
		fail(w, r, "update profile", err)
		return
	}
	req.Role = sess.Role

	u, err := h.Users.Update(r.Context(), sess.UserID, req)
	if err != nil {
		fail(w, r, "update profile", err)
		return
	}
	h.respondSignedIn(w, r, http.StatusOK, "Profile updated", u)
}

func decodeUserUpdate(r *http.Request) (user.UpdateRequest, error) {
	var req user.UpdateRequest
	err := decodeBody(r, fields{
		"name":     text(&req.Name),
		"email":    text(&req.Email),
		"role":     text(&req.Role),
		"password": text(&req.Password),
	})
	return req, err
}
