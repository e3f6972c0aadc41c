// ABOUTME: Environment configuration for kith, parsed from KITH_* variables and an optional .env file
// ABOUTME: Converts into the option structs of the resolver, query service and reconciler
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/harperreed/kith/resolve"
	"github.com/harperreed/kith/sync"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. KITH_DB_PATH.
const Prefix = "KITH"

type Config struct {
	DBPath    string `envconfig:"DB_PATH"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"auto" validate:"oneof=auto json console"`
	Owner     string `envconfig:"OWNER" validate:"omitempty,uuid"`
	Actor     string `envconfig:"ACTOR" default:"cli" validate:"required"`

	FuzzyThreshold        float64 `envconfig:"FUZZY_THRESHOLD" default:"0.85" validate:"gt=0,lte=1"`
	TieTolerance          float64 `envconfig:"TIE_TOLERANCE" default:"0.05" validate:"gte=0,lt=1"`
	PlaceholderConfidence float64 `envconfig:"PLACEHOLDER_CONFIDENCE" default:"0.8" validate:"gte=0,lte=1"`
	MaxDepth              int     `envconfig:"MAX_DEPTH" default:"6" validate:"gte=1,lte=32"`

	ProviderTimeout  time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s" validate:"gt=0"`
	FailureThreshold int           `envconfig:"FAILURE_THRESHOLD" default:"5" validate:"gte=1"`
	BackoffInitial   time.Duration `envconfig:"BACKOFF_INITIAL" default:"1m" validate:"gt=0"`
	BackoffMax       time.Duration `envconfig:"BACKOFF_MAX" default:"6h" validate:"gtefield=BackoffInitial"`
	SyncInterval     time.Duration `envconfig:"SYNC_INTERVAL" default:"15m" validate:"gte=1s"`
	SyncStaleAfter   time.Duration `envconfig:"SYNC_STALE_AFTER" default:"1h" validate:"gte=0"`
	MetricsAddr      string        `envconfig:"METRICS_ADDR"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleTokenPath    string `envconfig:"GOOGLE_TOKEN_PATH"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (when present) and the environment, fills path defaults and validates.
func Load() (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, &models.FatalConfigError{Provider: "config", Reason: "parse", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults that depend on the environment and rejects nonsense values.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(xdg.DataHome, "kith", "kith.db")
	}
	if c.GoogleTokenPath == "" {
		c.GoogleTokenPath = sync.TokenPath()
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &models.FatalConfigError{
			Provider: "config",
			Reason:   "invalid_" + strings.ToLower(fe.Field()),
			Err:      fmt.Errorf("%s fails %s", fe.Namespace(), fe.Tag()),
		}
	}
	return &models.FatalConfigError{Provider: "config", Reason: "invalid", Err: err}
}

func (c *Config) ResolveOptions() resolve.Options {
	return resolve.Options{FuzzyThreshold: c.FuzzyThreshold, TieTolerance: c.TieTolerance, Now: time.Now}
}

func (c *Config) QueryOptions() query.Options {
	return query.Options{
		Resolve:               c.ResolveOptions(),
		MaxDepth:              c.MaxDepth,
		PlaceholderConfidence: c.PlaceholderConfidence,
	}
}

func (c *Config) SyncOptions() sync.Options {
	return sync.Options{
		ProviderTimeout:  c.ProviderTimeout,
		FailureThreshold: c.FailureThreshold,
		BackoffInitial:   c.BackoffInitial,
		BackoffMax:       c.BackoffMax,
		StaleAfter:       c.SyncStaleAfter,
	}
}

// GoogleConfigured reports whether OAuth client credentials are present.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
