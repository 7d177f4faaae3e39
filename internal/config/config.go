// Package config loads process configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage driver names accepted by KIC_STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds everything the server process needs.
type Config struct {
	HTTPAddr      string   `env:"KIC_HTTP_ADDR" envDefault:":8080"`
	StorageDriver string   `env:"KIC_STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath    string   `env:"KIC_SQLITE_PATH" envDefault:"kic-ledger.db"`
	PostgresDSN   string   `env:"KIC_POSTGRES_DSN"`
	KafkaBrokers  []string `env:"KIC_KAFKA_BROKERS"` // empty disables event publishing
}

// Load reads a .env file if present, then parses the environment.
func Load() (Config, error) {
	// Missing .env is fine; the environment wins in deployed setups.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.StorageDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("KIC_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	return cfg, nil
}
