package secretstore

import (
	"fmt"
	"time"

	"github.com/louisbranch/passwallet/internal/platform/config"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and tunes the secret backend.
type Config struct {
	Backend       string        `env:"PASSWALLET_SECRET_STORE" envDefault:"memory"`
	RedisAddr     string        `env:"PASSWALLET_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB       int           `env:"PASSWALLET_REDIS_DB" envDefault:"0"`
	KeyPrefix     string        `env:"PASSWALLET_SECRET_PREFIX" envDefault:"passwallet:"`
	SweepInterval time.Duration `env:"PASSWALLET_SECRET_SWEEP_INTERVAL" envDefault:"1m"`
}

// LoadConfigFromEnv reads Config from the environment.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	switch cfg.Backend {
	case BackendMemory, BackendRedis:
	default:
		return Config{}, fmt.Errorf("unknown secret store backend %q", cfg.Backend)
	}
	return cfg, nil
}
