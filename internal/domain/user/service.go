package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/validation"
	"github.com/xenking/storefront/pkg/pagination"
)

// DefaultPageSize is the admin user list page size.
const DefaultPageSize = 10

// RegisterRequest holds the sign-up form.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,letters"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

// UpdateRequest holds the profile form. Password is only changed when set.
type UpdateRequest struct {
	Name     string    `json:"name" validate:"required,letters"`
	Email    string    `json:"email" validate:"required,email"`
	Role     auth.Role `json:"role" validate:"required,oneof=admin user"`
	Password string    `json:"password" validate:"omitempty,password"`
}

// Service implements account management.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService creates a user Service. cost is the bcrypt cost; values out of
// bcrypt's range fall back to bcrypt.DefaultCost.
func NewService(repo Repository, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, cost: cost, now: time.Now}
}

// Register creates a user with the user role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := validation.Check(req).Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     strings.ToLower(req.Email),
		Password:  string(hash),
		Role:      auth.RoleUser,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// Authenticate returns the user matching email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Update overwrites name, email and role of user id.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	if err := validation.Check(req).Err(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = req.Name
	u.Email = strings.ToLower(req.Email)
	u.Role = req.Role
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		u.Password = string(hash)
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// Delete removes user id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrHasOrders) {
			return ErrHasOrders
		}
		return errors.Wrap(err, "delete user")
	}
	return nil
}

// Get returns user id. The placeholder id "new" used by the admin form
// yields a nil user and no error, and so does an unknown id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if id == "new" {
		return nil, nil
	}
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// List returns one page of users ordered by name descending.
func (s *Service) List(ctx context.Context, p pagination.Params) (pagination.Page[User], error) {
	p = p.Normalize(DefaultPageSize, 100)

	users, err := s.repo.List(ctx, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[User]{}, errors.Wrap(err, "list users")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return pagination.Page[User]{}, errors.Wrap(err, "count users")
	}
	return pagination.NewPage(users, p, total), nil
}

// ChangeRole sets the role of user id.
func (s *Service) ChangeRole(ctx context.Context, id string, role auth.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "update role")
	}
	return nil
}
