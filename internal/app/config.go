package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL  string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	BcryptCost    int    `default:"10" usage:"bcrypt cost for password hashes" flag:"bcrypt-cost"`
	Session       SessionConfig
	RateLimit     RateLimitConfig
	LoginThrottle LoginThrottleConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
	Jobs          JobsConfig
	Store         StoreConfig
}

// SessionConfig controls the signed session tokens.
type SessionConfig struct {
	Secret       string        `usage:"HS256 signing secret for session tokens" flag:"session-secret"`
	TTL          time.Duration `default:"720h" usage:"Session lifetime" flag:"session-ttl"`
	CookieName   string        `default:"storefront_session" usage:"Session cookie name" flag:"session-cookie"`
	SecureCookie bool          `default:"false" usage:"Set the Secure attribute on the session cookie" flag:"session-secure"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// LoginThrottleConfig limits sign-in attempts per email address.
type LoginThrottleConfig struct {
	Every time.Duration `default:"12s" usage:"One login attempt is refilled every interval" flag:"login-every"`
	Burst int           `default:"5" usage:"Login attempts allowed at once" flag:"login-burst"`
	Idle  time.Duration `default:"1h" usage:"Forget throttle state idle this long" flag:"login-idle"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// JobsConfig schedules background maintenance. An empty spec disables a job.
type JobsConfig struct {
	DiscountSweep string `default:"@hourly" usage:"Cron spec for deactivating expired or exhausted discount codes" flag:"discount-sweep"`
	ThrottlePrune string `default:"@every 10m" usage:"Cron spec for pruning idle login throttle state" flag:"throttle-prune"`
}

// StoreConfig holds shop pricing and listing settings.
type StoreConfig struct {
	TaxRate           string `default:"0.15" usage:"Tax rate applied to order subtotals" flag:"tax-rate"`
	LowStockThreshold int    `default:"10" usage:"Products with less stock count as low stock" flag:"low-stock"`
	PageSize          int    `default:"12" usage:"Product list page size" flag:"page-size"`
}

// LoadConfig loads configuration from a .env file, environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if len(c.Session.Secret) < 32 {
		return errors.New("session secret must be at least 32 bytes: set SHOP_SESSION_SECRET")
	}
	if _, err := c.Store.taxRate(); err != nil {
		return err
	}
	return nil
}

func (s StoreConfig) taxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse tax rate %q", s.TaxRate)
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.Errorf("tax rate %s is negative", rate)
	}
	return rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
