package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/versatiles-org/versatiles/cmd/versatiles/cmd"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.NewRoot(ctx, version).Execute(); err != nil {
		os.Exit(1)
	}
}
