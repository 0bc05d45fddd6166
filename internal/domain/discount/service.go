package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/pkg/pagination"
)

// DefaultPageSize is the admin discount list page size.
const DefaultPageSize = 10

// Quote is the outcome of applying a code to a cart.
type Quote struct {
	Code   *Code
	Amount decimal.Decimal
}

// Service implements discount code management and redemption checks.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a discount Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Add creates a discount code from f.
func (s *Service) Add(ctx context.Context, f Form) (*Code, error) {
	now := s.now()
	if err := f.Validate(now); err != nil {
		return nil, err
	}

	c := &Code{
		ID:        uuid.New().String(),
		IsActive:  true,
		CreatedAt: now,
	}
	f.apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeTaken) || errors.Is(err, ErrUnknownProduct) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create discount code")
	}
	return c, nil
}

// Update overwrites code id with f. Uses and the active flag are kept.
func (s *Service) Update(ctx context.Context, id string, f Form) (*Code, error) {
	if err := f.Validate(s.now()); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrCodeTaken) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownProduct) {
			return nil, err
		}
		return nil, errors.Wrap(err, "update discount code")
	}
	return c, nil
}

// Toggle sets the active flag of code id.
func (s *Service) Toggle(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "toggle discount code")
	}
	return nil
}

// Delete removes code id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete discount code")
	}
	return nil
}

// List returns one page of codes with the titles of the products they cover.
func (s *Service) List(ctx context.Context, p pagination.Params) (pagination.Page[Code], error) {
	p = p.Normalize(DefaultPageSize, 100)

	codes, err := s.repo.List(ctx, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[Code]{}, errors.Wrap(err, "list discount codes")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return pagination.Page[Code]{}, errors.Wrap(err, "count discount codes")
	}
	return pagination.NewPage(codes, p, total), nil
}

// Get returns code id.
func (s *Service) Get(ctx context.Context, id string) (*Code, error) {
	return s.repo.GetByID(ctx, id)
}

// All returns every code ordered by code descending.
func (s *Service) All(ctx context.Context) ([]Code, error) {
	codes, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list all discount codes")
	}
	return codes, nil
}

// Quote looks up code and computes what it takes off lines. It does not
// record a use.
func (s *Service) Quote(ctx context.Context, code string, lines []Line) (*Quote, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup discount code")
	}
	if err := c.Redeemable(s.now()); err != nil {
		return nil, err
	}

	amount, err := Apply(c, lines)
	if err != nil {
		return nil, err
	}
	return &Quote{Code: c, Amount: amount}, nil
}

// Sweep deactivates expired and exhausted codes.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateStale(ctx, s.now())
	if err != nil {
		return 0, errors.Wrap(err, "deactivate stale discount codes")
	}
	return n, nil
}
