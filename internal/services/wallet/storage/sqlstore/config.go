package sqlstore

import "github.com/louisbranch/passwallet/internal/platform/config"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database.
type Config struct {
	Driver string `env:"PASSWALLET_DB_DRIVER" envDefault:"sqlite"`
	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string `env:"PASSWALLET_DB_DSN" envDefault:"data/wallet.db"`
}

// LoadConfigFromEnv reads Config from the environment.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
