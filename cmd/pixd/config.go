package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type config struct {
	ListenAddr       string        `env:"LISTEN_ADDR" envDefault:":8080"`
	PublicBaseURL    string        `env:"PIX_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	ExpirationWindow time.Duration `env:"PIX_EXPIRATION_WINDOW" envDefault:"10m"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"pix.db"`

	JWTSecret string `env:"JWT_SECRET"`

	RedisAddr     string `env:"BROADCAST_REDIS_ADDR"`
	RedisPassword string `env:"BROADCAST_REDIS_PASSWORD"`
	RedisDB       int    `env:"BROADCAST_REDIS_DB" envDefault:"0"`
	RedisChannel  string `env:"BROADCAST_REDIS_CHANNEL" envDefault:"pix-dashboard"`

	KafkaBrokers []string `env:"BROADCAST_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"BROADCAST_KAFKA_TOPIC" envDefault:"pix-dashboard"`

	BroadcastWorkers int           `env:"BROADCAST_WORKERS" envDefault:"1"`
	BroadcastQueue   int           `env:"BROADCAST_QUEUE" envDefault:"256"`
	BroadcastTimeout time.Duration `env:"BROADCAST_TIMEOUT" envDefault:"5s"`

	// Cada cliente pode errar LOOKUP_MISS_BURST tokens de uma vez e recupera
	// LOOKUP_MISS_RPS erros por segundo. Token real não gasta saldo.
	LookupMissRPS    float64       `env:"LOOKUP_MISS_RPS" envDefault:"0.2"`
	LookupMissBurst  int           `env:"LOOKUP_MISS_BURST" envDefault:"10"`
	LookupKeyHeader  string        `env:"LOOKUP_KEY_HEADER"`
	TrustXFF         bool          `env:"TRUST_XFF" envDefault:"false"`
	LookupRetryAfter time.Duration `env:"LOOKUP_RETRY_AFTER" envDefault:"5s"`

	DashboardMaxClients int `env:"DASHBOARD_MAX_CLIENTS" envDefault:"500"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`
	SweepBatch    int           `env:"SWEEP_BATCH" envDefault:"100"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

func readConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be memory, sqlite or postgres, got %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ExpirationWindow <= 0 {
		return errors.New("PIX_EXPIRATION_WINDOW must be > 0")
	}
	if c.LookupMissRPS <= 0 {
		return errors.New("LOOKUP_MISS_RPS must be > 0")
	}
	if c.LookupMissBurst <= 0 {
		return errors.New("LOOKUP_MISS_BURST must be > 0")
	}
	if c.DashboardMaxClients < 0 {
		return errors.New("DASHBOARD_MAX_CLIENTS must be >= 0")
	}
	if c.BroadcastWorkers <= 0 || c.BroadcastQueue <= 0 {
		return errors.New("BROADCAST_WORKERS and BROADCAST_QUEUE must be > 0")
	}
	if c.SweepInterval < 0 {
		return errors.New("SWEEP_INTERVAL must be >= 0")
	}
	return nil
}

func (c config) logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
