package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/address"
)

const (
	upsertUserAddressSQL = `INSERT INTO user_addresses
		(id, first_name, last_name, address, address2, postal_code, phone, city, country_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			address = EXCLUDED.address, address2 = EXCLUDED.address2,
			postal_code = EXCLUDED.postal_code, phone = EXCLUDED.phone,
			city = EXCLUDED.city, country_id = EXCLUDED.country_id`

	getUserAddressSQL = `SELECT first_name, last_name, address, address2, postal_code, city, country_id, phone
		FROM user_addresses WHERE user_id = $1`

	deleteUserAddressSQL = `DELETE FROM user_addresses WHERE user_id = $1`

	listCountriesSQL = `SELECT id, name FROM countries ORDER BY name`

	countryExistsSQL = `SELECT EXISTS (SELECT 1 FROM countries WHERE id = $1)`

	upsertCountrySQL = `INSERT INTO countries (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Upsert stores a as the address of userID.
func (r *AddressRepository) Upsert(ctx context.Context, userID string, a address.Address) error {
	_, err := r.pool.Exec(ctx, upsertUserAddressSQL,
		uuid.New().String(), a.FirstName, a.LastName, a.Address, a.Address2,
		a.PostalCode, a.Phone, a.City, a.Country, userID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return address.ErrUnknownCountry
		}
		return fmt.Errorf("upserting address of user %q: %w", userID, err)
	}
	return nil
}

// Get returns the address of userID, or nil if none is stored.
func (r *AddressRepository) Get(ctx context.Context, userID string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getUserAddressSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address of user %q: %w", userID, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting address of user %q: %w", userID, err)
	}
	return &a, nil
}

// Delete removes the address of userID, if any.
func (r *AddressRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, deleteUserAddressSQL, userID); err != nil {
		return fmt.Errorf("deleting address of user %q: %w", userID, err)
	}
	return nil
}

// Countries returns every country ordered by name.
func (r *AddressRepository) Countries(ctx context.Context) ([]address.Country, error) {
	rows, err := r.pool.Query(ctx, listCountriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing countries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (address.Country, error) {
		var c address.Country
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

// CountryExists reports whether a country with id exists.
func (r *AddressRepository) CountryExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, countryExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking country %q: %w", id, err)
	}
	return ok, nil
}

// UpsertCountry inserts c or renames the existing country with c.ID.
func (r *AddressRepository) UpsertCountry(ctx context.Context, c address.Country) error {
	if _, err := r.pool.Exec(ctx, upsertCountrySQL, c.ID, c.Name); err != nil {
		return fmt.Errorf("upserting country %q: %w", c.ID, err)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.FirstName, &a.LastName, &a.Address, &a.Address2, &a.PostalCode, &a.City, &a.Country, &a.Phone)
	return a, err
}
