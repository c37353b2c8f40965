// Package config содержит логику чтения конфигурации магазина.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultPaystackBaseURL = "https://api.paystack.co"
	defaultPendingTTL      = 24 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
	defaultLogLevel        = "info"
)

// Config содержит параметры конфигурации магазина.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	PaystackBaseURL      string        `env:"PAYSTACK_BASE_URL"`
	PaystackSecretKey    string        `env:"PAYSTACK_SECRET_KEY"`
	PaystackCallbackURL  string        `env:"PAYSTACK_CALLBACK_URL"`
	RedisAddress         string        `env:"REDIS_ADDR"`
	AuthSecret           string        `env:"AUTH_SECRET"`
	AdminLogin           string        `env:"ADMIN_LOGIN"`
	AdminPasswordHash    string        `env:"ADMIN_PASSWORD_HASH"`
	PendingPaymentTTL    time.Duration `env:"PENDING_PAYMENT_TTL" envDefault:"24h"`
	PendingCleanupPeriod time.Duration `env:"PENDING_CLEANUP_INTERVAL" envDefault:"10m"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaystackBaseURL := cfg.PaystackBaseURL
	envCallbackURL := cfg.PaystackCallbackURL
	envRedisAddress := cfg.RedisAddress

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaystackBaseURL, "g", defaultPaystackBaseURL, "payment gateway base URL")
	flag.StringVar(&cfg.PaystackCallbackURL, "c", "", "payment gateway callback URL")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for verification locks")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaystackBaseURL != "" {
		cfg.PaystackBaseURL = envPaystackBaseURL
	}
	if envCallbackURL != "" {
		cfg.PaystackCallbackURL = envCallbackURL
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.PaystackBaseURL == "" {
		cfg.PaystackBaseURL = defaultPaystackBaseURL
	}
	if cfg.PendingPaymentTTL < 0 {
		cfg.PendingPaymentTTL = defaultPendingTTL
	}
	if cfg.PendingCleanupPeriod <= 0 {
		cfg.PendingCleanupPeriod = defaultCleanupInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.PaystackCallbackURL == "" {
		cfg.PaystackCallbackURL = "http://" + cfg.RunAddress + "/api/payments/verify"
	}

	return cfg, nil
}
