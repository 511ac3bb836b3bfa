package signature

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls partner signature verification.
type Config struct {
	Secret          string        `env:"PASSWALLET_PARTNER_SECRET"`
	Enforce         bool          `env:"PASSWALLET_SIGNATURE_ENFORCE"        envDefault:"true"`
	TimestampWindow time.Duration `env:"PASSWALLET_SIGNATURE_TIMESTAMP_WINDOW" envDefault:"5m"`
}

// LoadConfigFromEnv reads signature configuration. A secret is required
// while enforcement is on.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse signature env: %w", err)
	}
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	if cfg.Enforce && cfg.Secret == "" {
		return Config{}, fmt.Errorf("PASSWALLET_PARTNER_SECRET is required when signature enforcement is on")
	}
	if cfg.TimestampWindow <= 0 {
		cfg.TimestampWindow = 5 * time.Minute
	}
	return cfg, nil
}
