package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (DINETAB_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (DINETAB_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	NATSURL      string `default:"nats://127.0.0.1:4222" usage:"NATS server URL for dashboard events" flag:"nats-url"`
	APIKeyPepper string `usage:"HMAC pepper for staff API key hashing" flag:"api-key-pepper"`
	// ExchangeRate converts display-currency minor units into settlement
	// currency minor units, e.g. 0.0036 for PKR to USD.
	ExchangeRate string `default:"0.0036" usage:"Display to settlement currency rate" flag:"exchange-rate"`
	Stripe       StripeConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StripeConfig holds payment provider credentials and redirect targets.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe API secret key" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
	BaseURL       string `default:"" usage:"Override Stripe API base URL (testing)" flag:"stripe-base-url"`
	Currency      string `default:"usd" usage:"Settlement currency code" flag:"settlement-currency"`
	SuccessURL    string `usage:"Redirect URL after successful payment" flag:"success-url"`
	CancelURL     string `usage:"Redirect URL after canceled payment" flag:"cancel-url"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// Rate parses the configured exchange rate.
func (c *Config) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.ExchangeRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse exchange rate %q", c.ExchangeRate)
	}
	if !rate.IsPositive() {
		return decimal.Zero, errors.Errorf("exchange rate must be positive, got %s", rate)
	}
	return rate, nil
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "DINETAB",
		Files:     []string{"config.yaml", "/etc/dinetab/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set DINETAB_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Rate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's DINETAB_-prefixed configuration.
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
