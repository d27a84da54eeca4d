// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"pickup-games/internal/participation"
	"pickup-games/internal/storage/sqlstore"
)

const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"pickup-games.db"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	AdminEmail      string        `env:"ADMIN_EMAIL"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"false"`
	ReservePolicy   string        `env:"RESERVE_POLICY" envDefault:"full_only"`
	LockBackend     string        `env:"LOCK_BACKEND" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"`
	LockTTL         time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	NotifyQueueSize int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	OTELEndpoint    string        `env:"OTEL_ENDPOINT"`
	OTELSampleRatio float64       `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
	ServiceVersion  string        `env:"SERVICE_VERSION" envDefault:"dev"`
	GRPCHealthAddr  string        `env:"GRPC_HEALTH_ADDR"`
}

// Load reads an optional .env file, then parses and validates the environment.
// Variables already set in the process win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LockBackend = strings.ToLower(strings.TrimSpace(cfg.LockBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case sqlstore.DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case sqlstore.DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.LockBackend {
	case LockMemory:
	case LockRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}

	if _, err := participation.ParseReservePolicy(c.ReservePolicy); err != nil {
		return err
	}
	if c.LockTTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}
	if c.NotifyQueueSize <= 0 {
		return errors.New("NOTIFY_QUEUE_SIZE must be positive")
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO %v outside [0, 1]", c.OTELSampleRatio)
	}
	return nil
}
