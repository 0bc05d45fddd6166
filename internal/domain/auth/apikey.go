package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeAdmin grants an API key the admin role.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a stored API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper. Only hashes
// are persisted.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// APIKeys authenticates raw API keys against a Repository.
type APIKeys struct {
	repo   Repository
	pepper []byte
}

// NewAPIKeys creates an APIKeys authenticator.
func NewAPIKeys(repo Repository, pepper []byte) *APIKeys {
	return &APIKeys{repo: repo, pepper: pepper}
}

// Authenticate resolves key to a session. Keys with the admin scope get the
// admin role, others the user role.
func (a *APIKeys) Authenticate(ctx context.Context, key string) (Session, error) {
	if key == "" {
		return Session{}, ErrInvalidAPIKey
	}
	hash := HashAPIKey(a.pepper, key)

	info, err := a.repo.FindByHash(ctx, hash)
	if errors.Is(err, ErrAPIKeyNotFound) {
		return Session{}, ErrInvalidAPIKey
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "find api key")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return Session{}, ErrInvalidAPIKey
	}
	computed, _ := hex.DecodeString(hash)
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return Session{}, ErrInvalidAPIKey
	}

	role := RoleUser
	if slices.Contains(info.Scopes, ScopeAdmin) {
		role = RoleAdmin
	}
	return Session{
		UserID: apiKeyPrefix + info.ID,
		Name:   info.Name,
		Role:   role,
	}, nil
}
