package ratelimit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls per-client request budgets.
type Config struct {
	Limit          int           `env:"PASSWALLET_RATE_LIMIT"           envDefault:"30"`
	Window         time.Duration `env:"PASSWALLET_RATE_WINDOW"          envDefault:"1m"`
	TrustForwarded bool          `env:"PASSWALLET_RATE_TRUST_FORWARDED" envDefault:"false"`
}

// LoadConfigFromEnv reads rate limit configuration.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse rate limit env: %w", err)
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return Config{}, fmt.Errorf("rate limit and window must be positive")
	}
	return cfg, nil
}
