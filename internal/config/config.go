package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/jamanager.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL enables the jam snapshot cache and the redis health check.
	// Empty means no redis; the service runs without it.
	RedisURL    string        `env:"REDIS_URL"`
	SnapshotTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"30s"`

	// PerformanceLimit is the max concurrent performance registrations an
	// attendee may hold within one jam.
	PerformanceLimit int `env:"PERFORMANCE_LIMIT" envDefault:"3"`

	// ManagerCodeHash is a bcrypt hash of the jam-manager access code.
	// Empty disables the gate entirely.
	ManagerCodeHash string `env:"MANAGER_CODE_HASH"`

	SeedDemo bool `env:"SEED_DEMO"`

	// SPADir points at the built web client. Empty disables static serving.
	SPADir string `env:"SPA_DIR"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
