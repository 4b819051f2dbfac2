package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	PayPal    PayPalConfig
	Log       LogConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
}

type AppConfig struct {
	Name        string
	Environment string
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// PayPalConfig holds the merchant application credentials and the REST base URL.
type PayPalConfig struct {
	ClientID string
	Secret   string
	URL      string
	Currency string
	Timeout  time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// EventsConfig sizes the in-process event bus.
type EventsConfig struct {
	QueueSize      int
	Concurrency    int
	HandlerTimeout time.Duration
}

const (
	EnvProduction = "production"

	DefaultPayPalURL = "https://api-m.sandbox.paypal.com"
	DefaultCurrency  = "USD"
)

// Load reads configuration from the environment. A .env file in the working
// directory, if any, is applied first without overriding variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("SERVICE_NAME", "minishop-checkout"),
			Environment: getEnv("ENV", "dev"),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		PayPal: PayPalConfig{
			ClientID: getEnv("PAYPAL_CLIENT_ID", ""),
			Secret:   getEnv("PAYPAL_SECRET", ""),
			URL:      strings.TrimRight(getEnv("PAYPAL_URL", DefaultPayPalURL), "/"),
			Currency: strings.ToUpper(getEnv("PAYPAL_CURRENCY", DefaultCurrency)),
			Timeout:  getEnvDuration("PAYPAL_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		Tracing: TracingConfig{
			Enabled:    getEnvBool("TRACING_ENABLED", false),
			Endpoint:   getEnv("OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRate: getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 40),
		},
		Events: EventsConfig{
			QueueSize:      getEnvInt("EVENT_QUEUE_SIZE", 1024),
			Concurrency:    getEnvInt("EVENT_HANDLER_CONCURRENCY", 8),
			HandlerTimeout: getEnvDuration("EVENT_HANDLER_TIMEOUT", 30*time.Second),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.PayPal.ClientID == "" {
		errs = append(errs, "PAYPAL_CLIENT_ID is required")
	}
	if cfg.PayPal.Secret == "" {
		errs = append(errs, "PAYPAL_SECRET is required")
	}

	u, err := url.Parse(cfg.PayPal.URL)
	switch {
	case err != nil || u.Scheme == "" || u.Host == "":
		errs = append(errs, fmt.Sprintf("PAYPAL_URL must be an absolute URL, got %q", cfg.PayPal.URL))
	case u.Scheme != "https" && cfg.App.Environment == EnvProduction:
		errs = append(errs, "PAYPAL_URL must use https in production")
	}

	if len(cfg.PayPal.Currency) != 3 {
		errs = append(errs, fmt.Sprintf("PAYPAL_CURRENCY must be a 3-letter ISO 4217 code, got %q", cfg.PayPal.Currency))
	}
	if cfg.PayPal.Timeout <= 0 {
		errs = append(errs, "PAYPAL_TIMEOUT must be positive")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, "TRACING_SAMPLE_RATE must be between 0 and 1")
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if cfg.Events.QueueSize <= 0 || cfg.Events.Concurrency <= 0 || cfg.Events.HandlerTimeout <= 0 {
		errs = append(errs, "EVENT_QUEUE_SIZE, EVENT_HANDLER_CONCURRENCY and EVENT_HANDLER_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
