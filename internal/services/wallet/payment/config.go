package payment

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls payment request lifetimes and pruning.
type Config struct {
	DefaultTTL    time.Duration `env:"PASSWALLET_PAYMENT_DEFAULT_TTL"    envDefault:"5m"`
	MaxTTL        time.Duration `env:"PASSWALLET_PAYMENT_MAX_TTL"        envDefault:"30m"`
	Retention     time.Duration `env:"PASSWALLET_PAYMENT_RETENTION"      envDefault:"24h"`
	PruneInterval time.Duration `env:"PASSWALLET_PAYMENT_PRUNE_INTERVAL" envDefault:"10m"`
}

// DefaultConfig returns the built-in payment settings.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    5 * time.Minute,
		MaxTTL:        30 * time.Minute,
		Retention:     24 * time.Hour,
		PruneInterval: 10 * time.Minute,
	}
}

// LoadConfigFromEnv reads payment configuration.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse payment env: %w", err)
	}
	if cfg.DefaultTTL <= 0 || cfg.MaxTTL <= 0 {
		return Config{}, fmt.Errorf("payment ttls must be positive")
	}
	if cfg.DefaultTTL > cfg.MaxTTL {
		return Config{}, fmt.Errorf("payment default ttl %s exceeds max ttl %s", cfg.DefaultTTL, cfg.MaxTTL)
	}
	return cfg, nil
}
