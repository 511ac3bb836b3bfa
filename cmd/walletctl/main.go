// Package main runs the wallet operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/passwallet/internal/platform/config"
	"github.com/louisbranch/passwallet/internal/tools/walletctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := walletctl.NewRootCommand(walletctl.OpenFromEnv).ExecuteContext(ctx); err != nil {
		stop()
		config.Exitf("walletctl: %v", err)
	}
}
