package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/posledger/internal/domain/checkout"
	"github.com/xenking/posledger/internal/domain/ident"
	"github.com/xenking/posledger/internal/domain/sale"
	"github.com/xenking/posledger/internal/session"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	WalkInName  string `default:"Walk-in" usage:"Customer name recorded for anonymous sales" flag:"walk-in-name"`
	RecentLimit int    `default:"20" usage:"Default number of rows in the sales history" flag:"recent-limit"`
	Storage     StorageConfig
	Redis       RedisConfig
	Session     SessionConfig
	Pricing     PricingConfig
	IDs         IDConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver      string `default:"postgres" usage:"Ledger backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (POS_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// RedisConfig enables the Redis cart session store when Addr is set.
type RedisConfig struct {
	Addr     string `default:"" usage:"Redis address for cart sessions; empty keeps carts in memory" flag:"redis-addr"`
	Password string `default:"" usage:"Redis password" flag:"redis-password"`
	DB       int    `default:"0" usage:"Redis database number" flag:"redis-db"`
}

// SessionConfig controls cart session lifetime.
type SessionConfig struct {
	TTL time.Duration `default:"8h" usage:"Idle lifetime of a cart session" flag:"session-ttl"`
}

// PricingConfig tunes line pricing.
type PricingConfig struct {
	CapFlatDiscount bool `default:"false" usage:"Cap flat discounts at the line subtotal" flag:"cap-flat-discount"`
}

// IDConfig controls generated identifiers.
type IDConfig struct {
	Width int `default:"3" usage:"Zero-padding width of generated product, customer and invoice numbers" flag:"id-width"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files
// and flags, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	base.EnvPrefix = "POS"
	if base.Files == nil {
		base.Files = []string{"config.yaml", "/etc/posledger/config.yaml"}
	}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto the
// POS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set POS_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.IDs.Width < 1 || c.IDs.Width > 18 {
		return errors.Errorf("id width %d out of range 1..18", c.IDs.Width)
	}
	if c.Session.TTL < 0 {
		return errors.Errorf("negative session ttl %s", c.Session.TTL)
	}
	if c.RateLimit.Max < 0 {
		return errors.Errorf("negative rate limit %d", c.RateLimit.Max)
	}
	return nil
}

func (c *Config) checkoutConfig() checkout.Config {
	return checkout.Config{IDWidth: c.IDs.Width, WalkInName: c.WalkInName}
}

func (c *Config) sessionTTL() time.Duration {
	if c.Session.TTL == 0 {
		return session.DefaultTTL
	}
	return c.Session.TTL
}

func (c *Config) recentLimit() int {
	if c.RecentLimit <= 0 {
		return sale.DefaultRecentLimit
	}
	return c.RecentLimit
}

func (c *Config) idWidth() int {
	if c.IDs.Width <= 0 {
		return ident.DefaultWidth
	}
	return c.IDs.Width
}
