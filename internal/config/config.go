// Package config reads server settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/kazna/internal/archive"
	"github.com/dukerupert/kazna/internal/push"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port             string
	DBPath           string
	LogLevel         string
	LogFormat        string
	DueAmount        decimal.Decimal
	Location         *time.Location
	Locale           string
	RolloverInterval time.Duration
	CookieSecure     bool
	AllowedOrigins   []string
	Push             push.Config
	Archive          archive.Config
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, defaultValue string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		Port:      get("KAZNA_PORT", "8080"),
		DBPath:    get("KAZNA_DB_PATH", "kazna.db"),
		LogLevel:  get("KAZNA_LOG_LEVEL", "info"),
		LogFormat: get("KAZNA_LOG_FORMAT", "text"),
		Locale:    get("KAZNA_LOCALE", "en"),
		Push: push.Config{
			VAPIDPublicKey:  getenv("KAZNA_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: getenv("KAZNA_VAPID_PRIVATE_KEY"),
			Subscriber:      getenv("KAZNA_VAPID_SUBSCRIBER"),
		},
		Archive: archive.Config{
			S3: archive.S3Config{
				Endpoint:  getenv("KAZNA_S3_ENDPOINT"),
				Bucket:    getenv("KAZNA_S3_BUCKET"),
				Region:    get("KAZNA_S3_REGION", "us-east-1"),
				AccessKey: getenv("KAZNA_S3_ACCESS_KEY"),
				SecretKey: getenv("KAZNA_S3_SECRET_KEY"),
			},
			Passphrase: getenv("KAZNA_ARCHIVE_PASSPHRASE"),
			Prefix:     get("KAZNA_S3_PREFIX", "kazna/"),
		},
	}

	if cfg.Locale != "en" && cfg.Locale != "ru" {
		return nil, fmt.Errorf("KAZNA_LOCALE: unsupported locale %q", cfg.Locale)
	}

	due, err := decimal.NewFromString(get("KAZNA_DUE_AMOUNT", "1000"))
	if err != nil {
		return nil, fmt.Errorf("KAZNA_DUE_AMOUNT: %w", err)
	}
	if !due.IsPositive() {
		return nil, fmt.Errorf("KAZNA_DUE_AMOUNT: must be greater than zero")
	}
	cfg.DueAmount = due

	cfg.Location = time.Local
	if tz := getenv("KAZNA_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("KAZNA_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	interval, err := time.ParseDuration(get("KAZNA_ROLLOVER_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("KAZNA_ROLLOVER_INTERVAL: %w", err)
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("KAZNA_ROLLOVER_INTERVAL: must be at least 1m")
	}
	cfg.RolloverInterval = interval

	secure, err := strconv.ParseBool(get("KAZNA_COOKIE_SECURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("KAZNA_COOKIE_SECURE: %w", err)
	}
	cfg.CookieSecure = secure

	for _, o := range strings.Split(getenv("KAZNA_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, nil
}
