package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/fulfillment/internal/repository"
	"github.com/xenking/fulfillment/internal/txretry"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (FULFILLMENT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (FULFILLMENT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (FULFILLMENT_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Payment      PaymentConfig
	OfferCache   OfferCacheConfig
	Health       HealthConfig
	Graceful     GracefulConfig
}

// PaymentConfig controls payment writes and the post-payment settle delay.
type PaymentConfig struct {
	SettleDelay time.Duration `default:"1s"    usage:"Pause after a payment is recorded" flag:"payment-settle-delay"`
	MaxAttempts int           `default:"3"     usage:"Attempts per payment write before giving up" flag:"payment-max-attempts"`
	Backoff     time.Duration `default:"100ms" usage:"Backoff unit; attempt n waits n*backoff" flag:"payment-backoff"`
	LockTimeout time.Duration `default:"2s"    usage:"lock_timeout for payment writes, 0 keeps the server default" flag:"payment-lock-timeout"`
}

// OfferCacheConfig sizes the in-process offer cache. A zero TTL disables it.
type OfferCacheConfig struct {
	Size int           `default:"1024" usage:"Maximum cached offers" flag:"offer-cache-size"`
	TTL  time.Duration `default:"30s"  usage:"Offer cache entry lifetime" flag:"offer-cache-ttl"`
}

// HealthConfig controls background probe scheduling.
type HealthConfig struct {
	Interval         time.Duration `default:"10s" usage:"Probe interval" flag:"health-interval"`
	FailureThreshold int           `default:"3"   usage:"Consecutive failures before a probe reports unhealthy" flag:"health-failure-threshold"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FULFILLMENT",
		Files:     []string{"config.yaml", "/etc/fulfillment/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set FULFILLMENT_DATABASE_URL or DATABASE_URL")
	case c.Payment.MaxAttempts < 1:
		return errors.Errorf("payment max attempts must be positive, got %d", c.Payment.MaxAttempts)
	case c.Payment.Backoff < 0 || c.Payment.SettleDelay < 0 || c.Payment.LockTimeout < 0:
		return errors.New("payment durations must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps DATABASE_URL and PORT, as set by hosting
// platforms, onto the prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// RetryPolicy is the payment write policy described by c.
func (c PaymentConfig) RetryPolicy() txretry.Policy {
	p := txretry.DefaultPolicy()
	p.MaxAttempts = c.MaxAttempts
	p.Backoff = c.Backoff
	return p
}

// repositoryOptions builds the payment repository options without telemetry.
func (c PaymentConfig) repositoryOptions() repository.PaymentOptions {
	return repository.PaymentOptions{
		Retry:       c.RetryPolicy(),
		LockTimeout: c.LockTimeout,
	}
}
