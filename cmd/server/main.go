// Package main starts the mechvolt engine: the append-only power ledger,
// the status cache, and the HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinderworks/mechvolt/internal/app"
	"github.com/cinderworks/mechvolt/internal/platform/config"
)

func main() {
	var cfg app.Config
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}
	log.SetPrefix("[MECHVOLT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
