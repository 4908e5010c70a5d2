package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from the environment at startup. DatabaseURL selects
// PostgreSQL when set; otherwise the embedded SQLite file at SQLitePath
// is used. An empty RedisAddr disables the report cache.
type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/warungku.db"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ReportTTL time.Duration `envconfig:"REPORT_TTL" default:"5m"`

	// VoidRestoresDebt makes voiding a credit sale also subtract the
	// sale total from the customer's balance. Off by default: a void
	// then only compensates stock.
	VoidRestoresDebt bool `envconfig:"VOID_RESTORES_DEBT" default:"false"`

	// SeedDemoData fills the in-memory store with a small catalog.
	// It has no effect on the SQL backends.
	SeedDemoData bool `envconfig:"SEED_DEMO_DATA" default:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.ReportTTL < time.Second {
		cfg.ReportTTL = 5 * time.Minute
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
