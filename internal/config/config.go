package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"
)

type Config struct {
	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool `ignored:"true"`

	App struct {
		Name     string `envconfig:"APP_NAME" default:"POS Engine"`
		Env      string `envconfig:"APP_ENV" default:"development"`
		Port     int    `envconfig:"PORT" default:"3000"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		URL             string        `envconfig:"DATABASE_URL"`
		Host            string        `envconfig:"DB_HOST" default:"localhost"`
		Port            int           `envconfig:"DB_PORT" default:"5432"`
		User            string        `envconfig:"DB_USER" default:"postgres"`
		Password        string        `envconfig:"DB_PASSWORD" default:""`
		Name            string        `envconfig:"DB_NAME" default:"pos_db"`
		SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
		MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
		MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
		ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	}

	JWT struct {
		Secret string `envconfig:"JWT_SECRET" default:"your-super-secret-key-change-in-production"`
		Issuer string `envconfig:"JWT_ISSUER" default:"go-pos-engine"`
	}

	Mpesa struct {
		Environment    string        `envconfig:"MPESA_ENVIRONMENT" default:"sandbox"`
		BaseURL        string        `envconfig:"MPESA_BASE_URL"`
		ConsumerKey    string        `envconfig:"MPESA_CONSUMER_KEY"`
		ConsumerSecret string        `envconfig:"MPESA_CONSUMER_SECRET"`
		Shortcode      string        `envconfig:"MPESA_SHORTCODE"`
		Passkey        string        `envconfig:"MPESA_PASSKEY"`
		CallbackURL    string        `envconfig:"MPESA_CALLBACK_URL"`
		CallbackToken  string        `envconfig:"MPESA_CALLBACK_TOKEN"`
		Timeout        time.Duration `envconfig:"MPESA_TIMEOUT" default:"30s"`
	}

	// Reaper fails mobile-payment transactions stuck in pending. Disabled when PendingTTL is zero.
	Reaper struct {
		PendingTTL time.Duration `envconfig:"REAPER_PENDING_TTL" default:"0s"`
		Interval   time.Duration `envconfig:"REAPER_INTERVAL" default:"1m"`
	}
}

// DSN returns DATABASE_URL when set, otherwise builds one from the DB_* variables.
func (c *Config) DSN() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		c.DB.Host, c.DB.User, c.DB.Password, c.DB.Name, c.DB.Port, c.DB.SSLMode,
	)
}

// MpesaBaseURL resolves the provider host from MPESA_BASE_URL or MPESA_ENVIRONMENT.
func (c *Config) MpesaBaseURL() string {
	if c.Mpesa.BaseURL != "" {
		return c.Mpesa.BaseURL
	}
	if c.Mpesa.Environment == "production" {
		return MpesaProductionURL
	}
	return MpesaSandboxURL
}

// Load reads an optional .env file and then the process environment. A missing
// .env is reported through EnvFileLoaded for the caller to log.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	cfg.EnvFileLoaded = loaded

	return &cfg, nil
}
