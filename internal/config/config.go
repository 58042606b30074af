// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/database"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is the configuration of the main service.
type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Storage   string          `env:"STORAGE" envDefault:"postgres" validate:"oneof=postgres memory"`
	Postgres  database.Config `envPrefix:"DB_"`
	Stats     StatsConfig     `envPrefix:"STATS_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Reconcile ReconcileConfig `envPrefix:"RECONCILE_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
}

// StatsServerConfig is the configuration of the stats service.
type StatsServerConfig struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Postgres  database.Config `envPrefix:"DB_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
}

// ServerConfig holds the HTTP listener settings shared by both services.
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080" validate:"required"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	// TxTimeout bounds every request handled by the API, including the time
	// spent waiting for an event lock.
	TxTimeout time.Duration `env:"TX_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

// StatsConfig points the main service at the stats service.
type StatsConfig struct {
	URL        string        `env:"URL" envDefault:"http://localhost:9090"`
	App        string        `env:"APP" envDefault:"ewm-main-service" validate:"required"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"2s" validate:"gt=0"`
	HitRetries uint          `env:"HIT_RETRIES" envDefault:"3" validate:"gte=1"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"FORMAT" envDefault:"json" validate:"oneof=json text"`
}

// ReconcileConfig controls the periodic confirmed-count audit.
type ReconcileConfig struct {
	// Interval of zero disables the reconciler.
	Interval time.Duration `env:"INTERVAL" envDefault:"5m" validate:"gte=0"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Endpoint string `env:"ENDPOINT"`
}

// Load reads an optional .env file and parses the environment into cfg,
// which must be a pointer to Config or StatsServerConfig.
func Load(cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from c.
func (c LogConfig) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if c.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
