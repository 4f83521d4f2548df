package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds service configuration, loaded from the environment.
type Config struct {
	DatabaseURL         string        `env:"DATABASE_URL"`
	ServerAddr          string        `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"lancehub_session"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	EventBuffer         int           `env:"EVENT_BUFFER" envDefault:"256"`

	Postgres Postgres
}

// Postgres assembles a DSN from parts when DATABASE_URL is not set.
type Postgres struct {
	User     string `env:"POSTGRES_USER" envDefault:"lancehub"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"lancehub_pass"`
	DB       string `env:"POSTGRES_DB" envDefault:"lancehub"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	SSLMode  string `env:"DATABASE_SSLMODE" envDefault:"disable"`
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DatabaseURL == "" {
		p := cfg.Postgres
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
	}
	return cfg, nil
}
