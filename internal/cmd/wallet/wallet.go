// Package wallet parses wallet command flags and launches the wallet server.
package wallet

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/passwallet/internal/platform/cmd"
	server "github.com/louisbranch/passwallet/internal/services/wallet/app"
)

// Config holds wallet command configuration. Component settings are read by
// each component from its own environment variables.
type Config struct {
	GRPCPort int    `env:"PASSWALLET_GRPC_PORT" envDefault:"8091"`
	HTTPAddr string `env:"PASSWALLET_HTTP_ADDR" envDefault:"localhost:8090"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The wallet health gRPC server port")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The wallet HTTP API address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the wallet server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWallet, func(ctx context.Context) error {
		return server.Run(ctx, server.RuntimeConfig{
			GRPCPort: cfg.GRPCPort,
			HTTPAddr: cfg.HTTPAddr,
		})
	})
}
