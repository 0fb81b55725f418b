package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/vecindex/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, buildTime)

	// Cancel in-flight work on SIGINT/SIGTERM; files already written stay
	// committed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
