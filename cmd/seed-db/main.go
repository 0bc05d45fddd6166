package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	InStock     int             `json:"inStock"`
	Sizes       []string        `json:"sizes"`
	Tags        []string        `json:"tags"`
	Gender      string          `json:"gender"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
}

type options struct {
	databaseURL   string
	adminEmail    string
	adminPassword string
	apiKey        string
	apiKeyPepper  string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@example.com", "email of the seeded admin account")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "password of the seeded admin account (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env); skipped when empty")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if opts.adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or SHOP_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, opts.databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := seedCountries(ctx, postgres.NewAddressRepository(pool)); err != nil {
		return errors.Wrap(err, "seed countries")
	}

	productIDs, err := seedCatalog(ctx, postgres.NewProductRepository(pool))
	if err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedAdmin(ctx, pool, opts.adminEmail, opts.adminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	if opts.apiKey != "" {
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	if err := seedDiscounts(ctx, postgres.NewDiscountRepository(pool), productIDs); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	return nil
}

func readSeed(name string, v any) error {
	data, err := db.Seed.ReadFile("seed/" + name)
	if err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", name)
	}
	return nil
}

func seedCountries(ctx context.Context, repo *postgres.AddressRepository) error {
	var countries []address.Country
	if err := readSeed("countries.json", &countries); err != nil {
		return err
	}

	slog.Info("upserting countries", slog.Int("count", len(countries)))

	for _, c := range countries {
		if err := repo.UpsertCountry(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// seedCatalog upserts the categories of the demo products and inserts every
// product whose slug is not taken yet. It returns product IDs by slug.
func seedCatalog(ctx context.Context, repo *postgres.ProductRepository) (map[string]string, error) {
	var products []productJSON
	if err := readSeed("products.json", &products); err != nil {
		return nil, err
	}

	categories := make(map[string]string)
	for _, p := range products {
		id := product.NormalizeSlug(p.Category)
		if _, ok := categories[p.Category]; ok {
			continue
		}
		categories[p.Category] = id
		if err := repo.UpsertCategory(ctx, product.Category{ID: id, Name: p.Category}); err != nil {
			return nil, err
		}
		slog.Info("upserted category", slog.String("id", id), slog.String("name", p.Category))
	}

	ids := make(map[string]string, len(products))
	for _, p := range products {
		existing, err := repo.GetBySlug(ctx, p.Slug)
		switch {
		case err == nil:
			ids[p.Slug] = existing.ID
			slog.Info("product exists", slog.String("slug", p.Slug))
			continue
		case !errors.Is(err, product.ErrNotFound):
			return nil, errors.Wrapf(err, "lookup product %s", p.Slug)
		}

		np := &product.Product{
			ID:          uuid.New().String(),
			Title:       p.Title,
			Slug:        p.Slug,
			Description: p.Description,
			Price:       p.Price,
			InStock:     p.InStock,
			Sizes:       p.Sizes,
			Tags:        product.SplitTags(strings.Join(p.Tags, ",")),
			Gender:      product.Gender(p.Gender),
			CategoryID:  categories[p.Category],
			CreatedAt:   time.Now(),
		}
		if err := repo.Save(ctx, np, p.Images); err != nil {
			return nil, errors.Wrapf(err, "insert product %s", p.Slug)
		}
		ids[p.Slug] = np.ID

		slog.Info("inserted product", slog.String("id", np.ID), slog.String("slug", p.Slug))
	}
	return ids, nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	users := user.NewService(postgres.NewUserRepository(pool), 0)

	u, err := users.Register(ctx, user.RegisterRequest{
		Name:     "Admin",
		Email:    email,
		Password: password,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		slog.Info("admin account exists", slog.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}
	if err := users.ChangeRole(ctx, u.ID, auth.RoleAdmin); err != nil {
		return err
	}

	slog.Info("created admin account", slog.String("id", u.ID), slog.String("email", u.Email))
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default admin key"))

	return nil
}

func seedDiscounts(ctx context.Context, repo *postgres.DiscountRepository, productIDs map[string]string) error {
	slog.Info("seeding discount codes")

	hundred := 100
	codes := []discount.Code{
		{
			Code:           "WELCOME10",
			DiscountAmount: 10,
			DiscountType:   discount.TypePercentage,
			AllProducts:    true,
		},
		{
			Code:           "FIRST100",
			DiscountAmount: 15,
			DiscountType:   discount.TypeFixed,
			AllProducts:    true,
			Limit:          &hundred,
		},
	}
	var hoodies []string
	for _, slug := range []string{"men_raven_lightweight_hoodie", "kids_cybertruck_graffiti_hoodie"} {
		if id, ok := productIDs[slug]; ok {
			hoodies = append(hoodies, id)
		}
	}
	if len(hoodies) > 0 {
		codes = append(codes, discount.Code{
			Code:           "HOODIES20",
			DiscountAmount: 20,
			DiscountType:   discount.TypePercentage,
			ProductIDs:     hoodies,
		})
	}

	for i := range codes {
		c := &codes[i]
		c.ID = uuid.New().String()
		c.IsActive = true
		c.CreatedAt = time.Now()

		var (
			inserted bool
			err      error
		)
		if len(c.ProductIDs) > 0 {
			// Product links are only written on create.
			err = repo.Create(ctx, c)
			inserted = err == nil
			if errors.Is(err, discount.ErrCodeTaken) {
				err = nil
			}
		} else {
			inserted, err = repo.Upsert(ctx, c)
		}
		if err != nil {
			return errors.Wrapf(err, "seed code %s", c.Code)
		}

		slog.Info("seeded discount code", slog.String("code", c.Code), slog.Bool("inserted", inserted))
	}

	return nil
}
