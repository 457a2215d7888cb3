package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080" validate:"required"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15m"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty json"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	VendorBaseURL         string        `envconfig:"VF_BASE_URL" default:"https://atacadaoguanabara.varejofacil.com/api" validate:"required,url"`
	VendorToken           string        `envconfig:"VF_TOKEN"`
	VendorAPIKey          string        `envconfig:"VF_API_KEY"`
	VendorTimeout         time.Duration `envconfig:"VF_TIMEOUT" default:"30s" validate:"gt=0"`
	VendorRateLimit       float64       `envconfig:"VF_RATE_LIMIT" default:"5" validate:"gt=0"`
	VendorRateBurst       int           `envconfig:"VF_RATE_BURST" default:"5" validate:"gt=0"`
	VendorProductPageSize int           `envconfig:"VF_PRODUCT_PAGE_SIZE" default:"300" validate:"gt=0"`
	VendorLookupPageSize  int           `envconfig:"VF_LOOKUP_PAGE_SIZE" default:"1000" validate:"gt=0"`
	VendorFetchGroups     bool          `envconfig:"VF_FETCH_GROUPS" default:"true"`

	CatalogDataDir   string `envconfig:"CATALOG_DATA_DIR" default:"data" validate:"required"`
	CatalogFile      string `envconfig:"CATALOG_FILE" default:"products.json" validate:"required"`
	SyncSnapshotFile string `envconfig:"SYNC_SNAPSHOT_FILE" default:"varejo-facil-sync.json" validate:"required"`

	SyncTimeout      time.Duration `envconfig:"SYNC_TIMEOUT" default:"10m" validate:"gt=0"`
	SyncLockTTL      time.Duration `envconfig:"SYNC_LOCK_TTL" default:"10m" validate:"gt=0"`
	SyncCron         string        `envconfig:"SYNC_CRON" default:"0 * * * *"`
	SyncHistoryLimit int           `envconfig:"SYNC_HISTORY_LIMIT" default:"50" validate:"gt=0"`

	// SyncAbortOnEmptyProducts keeps the previous catalog when the first
	// products page fails instead of writing an empty one.
	SyncAbortOnEmptyProducts bool `envconfig:"SYNC_ABORT_ON_EMPTY_PRODUCTS" default:"false"`

	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"10m"`

	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config: %s failed %q validation", first.Field(), first.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HasVendorCredentials reports whether any vendor credential is configured.
func (c *Config) HasVendorCredentials() bool {
	return c != nil && (c.VendorToken != "" || c.VendorAPIKey != "")
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
