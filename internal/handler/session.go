package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// APIKeyHeader carries machine credentials.
const APIKeyHeader = "api_key"

// authenticate resolves the caller from a bearer token, the session cookie or
// an API key, in that order. Requests without credentials pass through
// anonymously, as do requests whose cookie no longer verifies (the cookie is
// cleared). A bad bearer token or API key is rejected.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok, err := h.resolveSession(w, r)
		if err != nil {
			fail(w, r, "authenticate", err)
			return
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.WithSession(r.Context(), sess)
		ctx = zctx.With(ctx, zap.String("user_id", sess.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool, error) {
	if raw, found := bearerToken(r); found {
		s, err := h.Tokens.Parse(raw)
		return s, err == nil, err
	}
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		s, err := h.Tokens.Parse(c.Value)
		if err != nil {
			h.clearCookie(w)
			return auth.Session{}, false, nil
		}
		return s, true, nil
	}
	if key := r.Header.Get(APIKeyHeader); key != "" && h.APIKeys != nil {
		s, err := h.APIKeys.Authenticate(r.Context(), key)
		return s, err == nil, err
	}
	return auth.Session{}, false, nil
}

func bearerToken(r *http.Request) (string, bool) {
	v := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(v, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			fail(w, r, "require user", auth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAccount admits sessions backed by a user account. API keys own no
// address, cart or orders and are refused.
func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.FromContext(r.Context())
		if !ok {
			fail(w, r, "require account", auth.ErrUnauthenticated)
			return
		}
		if s.IsAPIKey() {
			fail(w, r, "require account", auth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RequireAdmin(r.Context()); err != nil {
			fail(w, r, "require admin", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// session returns the caller; it is only used behind requireUser.
func session(r *http.Request) auth.Session {
	s, _ := auth.FromContext(r.Context())
	return s
}

func (h *Handler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
