// Package auth defines the authenticated session carried through a request
// and the two ways of obtaining one: signed session tokens for people and
// HMAC-hashed API keys for automation.
package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Role is the coarse permission level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

var (
	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the session lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrInvalidAPIKey is returned when an API key does not match a stored key.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrAPIKeyNotFound is returned by a Repository when no active key
	// matches a hash.
	ErrAPIKeyNotFound = errors.New("api key not found")
)

// apiKeyPrefix marks the UserID of sessions obtained with an API key.
const apiKeyPrefix = "apikey:"

// Session identifies the caller of a request.
type Session struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

// IsAdmin reports whether the session has the admin role.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// IsAPIKey reports whether the session belongs to an API key rather than a
// user account.
func (s Session) IsAPIKey() bool { return strings.HasPrefix(s.UserID, apiKeyPrefix) }

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// RequireAdmin returns the session in ctx when it belongs to an admin.
func RequireAdmin(ctx context.Context) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Session{}, ErrUnauthenticated
	}
	if !s.IsAdmin() {
		return s, ErrForbidden
	}
	return s, nil
}
