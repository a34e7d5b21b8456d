// Package config loads bot settings from config.env and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/internal/plans"
	"github.com/BatmanBruc/bat-bot-leecher/internal/shortener"
)

const DefaultEnvFile = "config.env"

type Config struct {
	BotToken       string `env:"BOT_TOKEN"`
	BotUsername    string `env:"BOT_USERNAME"`
	VerifyBaseURL  string `env:"VERIFY_BASE_URL"`
	OwnerID        int64  `env:"OWNER_ID"`
	AdminIDs       string `env:"ADMIN_IDS"`
	PaymentChannel int64  `env:"PAYMENT_CHANNEL"`

	Payment   Payment
	Shortlink Shortlink
	Download  Download
	Redis     Redis

	FreeDownloads       int    `env:"FREE_DOWNLOADS" env-default:"3"`
	TokenValidityHours  int    `env:"TOKEN_VALIDITY_HOURS" env-default:"24"`
	PendingPaymentLimit int    `env:"PENDING_PAYMENT_LIMIT" env-default:"1"`
	Plans               string `env:"PLANS"`

	StoreBackend  string `env:"STORE_BACKEND" env-default:"memory"`
	StoreTTLHours int    `env:"STORE_TTL_HOURS" env-default:"0"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	Workers     int    `env:"WORKERS" env-default:"3"`
	QueueSize   int    `env:"QUEUE_SIZE" env-default:"100"`
	MetricsAddr string `env:"METRICS_ADDR" env-default:":9090"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"auto"`
}

type Payment struct {
	UPIID     string        `env:"GPAY_UPI_ID"`
	PayeeName string        `env:"PAYEE_NAME" env-default:"Premium"`
	TTL       time.Duration `env:"PAYMENT_TTL" env-default:"30m"`
}

type Shortlink struct {
	Provider string        `env:"SHORTLINK_PROVIDER"`
	URL      string        `env:"SHORTLINK_URL"`
	APIKey   string        `env:"SHORTLINK_API"`
	AdFlyUID string        `env:"SHORTLINK_ADFLY_UID"`
	Timeout  time.Duration `env:"SHORTLINK_TIMEOUT" env-default:"10s"`
	RPS      float64       `env:"SHORTLINK_RPS" env-default:"5"`
}

type Download struct {
	Cookie         string `env:"TERABOX_COOKIE"`
	SaveChannel    int64  `env:"SAVE_CHANNEL"`
	MaxFileSize    int64  `env:"MAX_FILE_SIZE" env-default:"1610612736"`
	PremiumMaxSize int64  `env:"PREMIUM_MAX_SIZE" env-default:"2684354560"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Prefix   string `env:"REDIS_PREFIX" env-default:"bot_leecher"`
}

func (r Redis) Addr() string {
	return r.Host + ":" + r.Port
}

// Load reads envFile (missing is fine) without overriding variables already
// set, then parses the environment.
func Load(envFile string) (*Config, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.FreeDownloads < 0 {
		errs = append(errs, errors.New("FREE_DOWNLOADS must be >= 0"))
	}
	if c.TokenValidityHours <= 0 {
		errs = append(errs, errors.New("TOKEN_VALIDITY_HOURS must be > 0"))
	}
	if c.PendingPaymentLimit < 0 {
		errs = append(errs, errors.New("PENDING_PAYMENT_LIMIT must be >= 0"))
	}
	if c.Payment.TTL <= 0 {
		errs = append(errs, errors.New("PAYMENT_TTL must be positive"))
	}
	if c.Download.MaxFileSize <= 0 || c.Download.PremiumMaxSize < c.Download.MaxFileSize {
		errs = append(errs, errors.New("PREMIUM_MAX_SIZE must be >= MAX_FILE_SIZE > 0"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be > 0"))
	}
	switch c.StoreBackend {
	case "memory", "redis", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if _, err := c.ShortenerProvider(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Catalog(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ShortenerProvider returns SHORTLINK_PROVIDER, or the provider inferred
// from SHORTLINK_URL when none is named.
func (c *Config) ShortenerProvider() (shortener.Provider, error) {
	if strings.TrimSpace(c.Shortlink.Provider) == "" {
		return shortener.DetectProvider(c.Shortlink.URL), nil
	}
	return shortener.ParseProvider(c.Shortlink.Provider)
}

func (c *Config) ShortenerConfig() (shortener.Config, error) {
	p, err := c.ShortenerProvider()
	if err != nil {
		return shortener.Config{}, err
	}
	return shortener.Config{
		Provider: p,
		BaseURL:  c.Shortlink.URL,
		APIKey:   c.Shortlink.APIKey,
		AdFlyUID: c.Shortlink.AdFlyUID,
		Timeout:  c.Shortlink.Timeout,
		RPS:      c.Shortlink.RPS,
	}, nil
}

func (c *Config) Catalog() (*plans.Catalog, error) {
	return plans.Parse(c.Plans)
}

// OperatorIDs merges OWNER_ID and ADMIN_IDS.
func (c *Config) OperatorIDs() []int64 {
	ids := entitlement.ParseOperatorIDs(c.AdminIDs)
	if c.OwnerID != 0 {
		ids = append([]int64{c.OwnerID}, ids...)
	}
	return ids
}
