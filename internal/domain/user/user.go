package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
)

// Sentinel errors for user operations.
var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHasOrders          = errors.New("user has orders")
	ErrInvalidRole        = errors.New("invalid role")
)

// User is a registered account. Password holds the bcrypt hash.
type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified *time.Time
	Password      string
	Role          auth.Role
	Image         string
	CreatedAt     time.Time
}

// Session returns the authenticated session for u.
func (u *User) Session() auth.Session {
	return auth.Session{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
	}
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdateRole(ctx context.Context, id string, role auth.Role) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]User, error)
	Count(ctx context.Context) (int, error)
}
