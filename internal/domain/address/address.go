// Package address manages the shipping address a user chose to remember and
// the list of countries an address may point to.
package address

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/validation"
)

// ErrUnknownCountry is returned when an address names a missing country.
var ErrUnknownCountry = errors.New("unknown country")

// Address is a postal address. Country holds the country id.
type Address struct {
	FirstName  string `json:"firstName" validate:"required,letters"`
	LastName   string `json:"lastName" validate:"required,letters"`
	Address    string `json:"address" validate:"required"`
	Address2   string `json:"address2"`
	PostalCode string `json:"postalCode" validate:"required"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone" validate:"required,phone"`
}

// Country is an entry of the country catalog.
type Country struct {
	ID   string
	Name string
}

// Repository defines persistence for stored user addresses.
type Repository interface {
	Upsert(ctx context.Context, userID string, a Address) error
	Get(ctx context.Context, userID string) (*Address, error)
	Delete(ctx context.Context, userID string) error
	Countries(ctx context.Context) ([]Country, error)
	CountryExists(ctx context.Context, id string) (bool, error)
}

// Service implements address operations.
type Service struct {
	repo Repository
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Check validates a against the form rules and the country catalog.
func (s *Service) Check(ctx context.Context, a Address) error {
	errs := validation.Check(a)
	if _, bad := errs["country"]; !bad && a.Country != "" {
		ok, err := s.repo.CountryExists(ctx, a.Country)
		if err != nil {
			return errors.Wrap(err, "check country")
		}
		if !ok {
			errs.Add("country", ErrUnknownCountry.Error())
		}
	}
	return errs.Err()
}

// Set stores a as the remembered address of userID, replacing any previous
// one.
func (s *Service) Set(ctx context.Context, userID string, a Address) (*Address, error) {
	if err := s.Check(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, userID, a); err != nil {
		return nil, errors.Wrap(err, "upsert address")
	}
	return &a, nil
}

// Get returns the remembered address of userID, or nil if there is none.
func (s *Service) Get(ctx context.Context, userID string) (*Address, error) {
	a, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get address")
	}
	return a, nil
}

// Delete forgets the remembered address of userID. Deleting a missing
// address is not an error.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return errors.Wrap(err, "delete address")
	}
	return nil
}

// Countries returns the country catalog ordered by name.
func (s *Service) Countries(ctx context.Context) ([]Country, error) {
	countries, err := s.repo.Countries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list countries")
	}
	return countries, nil
}
