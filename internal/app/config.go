package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/delivery"
)

// Config holds the complete application configuration, loadable from
// environment variables (MEDCART_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string `usage:"PostgreSQL connection URL (MEDCART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper   string `usage:"HMAC pepper for access token hashing (MEDCART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	CurrencySymbol string `default:"₹" usage:"Symbol prefixed to display amounts" flag:"currency-symbol"`
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
	Delivery       DeliveryConfig
	Coupons        CouponsConfig
	Payment        PaymentConfig
	Notify         NotifyConfig
	Invoice        InvoiceConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
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

// DeliveryConfig sets the delivery fee policy. Amounts are decimal strings.
type DeliveryConfig struct {
	FreeThreshold string `default:"500" usage:"Subtotal from which delivery is free"`
	FlatFee       string `default:"40"  usage:"Fee charged below the free threshold"`
	ETADays       int    `default:"5"   usage:"Days from placement to expected delivery"`
}

// Policy parses the configured amounts.
func (c DeliveryConfig) Policy() (delivery.Policy, error) {
	threshold, err := decimal.NewFromString(c.FreeThreshold)
	if err != nil {
		return delivery.Policy{}, errors.Wrap(err, "delivery free threshold")
	}
	fee, err := decimal.NewFromString(c.FlatFee)
	if err != nil {
		return delivery.Policy{}, errors.Wrap(err, "delivery flat fee")
	}
	if threshold.IsNegative() || fee.IsNegative() || c.ETADays < 0 {
		return delivery.Policy{}, errors.New("delivery policy values must not be negative")
	}
	return delivery.Policy{FreeThreshold: threshold, FlatFee: fee, ETADays: c.ETADays}, nil
}

// CouponsConfig selects the coupon source.
type CouponsConfig struct {
	// Source is "db" for the coupons table or "static" for the built-in codes.
	Source          string        `default:"db"    usage:"Coupon source: db or static"`
	BloomCapacity   uint          `default:"100000" usage:"Expected number of coupon codes" flag:"coupons-bloom-capacity"`
	BloomFPR        float64       `default:"0.001" usage:"Prefilter false-positive rate" flag:"coupons-bloom-fpr"`
	RefreshInterval time.Duration `default:"5m"    usage:"Prefilter rebuild interval, 0 disables" flag:"coupons-refresh-interval"`
	ListenRetry     time.Duration `default:"5s"    usage:"Delay before resubscribing to coupon changes" flag:"coupons-listen-retry"`
}

// PaymentConfig configures Stripe Checkout. Online payments are unavailable
// when SecretKey is empty.
type PaymentConfig struct {
	SecretKey    string        `usage:"Stripe secret key" flag:"stripe-secret-key"`
	Currency     string        `default:"inr" usage:"ISO currency of charges"`
	SuccessURL   string        `default:"http://localhost:5173/orders?payment=success" usage:"Redirect after a paid session"`
	CancelURL    string        `default:"http://localhost:5173/cart?payment=cancelled" usage:"Redirect after an abandoned session"`
	Timeout      time.Duration `default:"30s" usage:"Payment session request timeout" flag:"payment-timeout"`
	Compensate   bool          `default:"false" usage:"Cancel the order and restore the cart when no session can be created"`
	BreakerFails uint32        `default:"5"   usage:"Consecutive failures that open the breaker" flag:"payment-breaker-fails"`
	BreakerOpen  time.Duration `default:"30s" usage:"How long the breaker stays open" flag:"payment-breaker-open"`
}

// NotifyConfig configures the notification outbox worker.
type NotifyConfig struct {
	// Transport is "http", "nats" or "none".
	Transport   string        `default:"none" usage:"Notification transport: http, nats or none"`
	URL         string        `usage:"Messaging function URL" flag:"notify-url"`
	Token       string        `usage:"Bearer token for the messaging function" flag:"notify-token"`
	NATSURL     string        `default:"nats://127.0.0.1:4222" usage:"NATS server URL" flag:"notify-nats-url"`
	Subject     string        `default:"medcart.notifications" usage:"NATS subject prefix"`
	Interval    time.Duration `default:"2s" usage:"Outbox poll interval" flag:"notify-interval"`
	BatchSize   int           `default:"50" usage:"Messages per poll" flag:"notify-batch-size"`
	MaxAttempts int           `default:"5"  usage:"Attempts before a message is marked failed" flag:"notify-max-attempts"`
	MaxBacklog  int           `default:"10000" usage:"Pending messages above which readiness fails" flag:"notify-max-backlog"`
}

// InvoiceConfig points at the invoice-rendering function. Empty URL disables
// the invoice endpoint.
type InvoiceConfig struct {
	URL     string        `usage:"Invoice function URL" flag:"invoice-url"`
	Token   string        `usage:"Bearer token for the invoice function" flag:"invoice-token"`
	Timeout time.Duration `default:"10s" usage:"Invoice request timeout" flag:"invoice-timeout"`
}

// LoadConfig loads configuration from an optional .env file, environment
// variables, YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MEDCART",
		Files:     []string{"config.yaml", "/etc/medcart/config.yaml"},
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
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set MEDCART_DATABASE_URL or DATABASE_URL")
	}
	switch c.Coupons.Source {
	case "db", "static":
	default:
		return errors.Errorf("unknown coupon source %q", c.Coupons.Source)
	}
	switch c.Notify.Transport {
	case "none", "nats":
	case "http":
		if c.Notify.URL == "" {
			return errors.New("notify URL is required for the http transport")
		}
	default:
		return errors.Errorf("unknown notify transport %q", c.Notify.Transport)
	}
	if _, err := c.Delivery.Policy(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MEDCART_-prefixed configuration.
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
