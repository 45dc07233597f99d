package main

import (
	"fmt"
	"os"

	"github.com/voltway/distctl/internal/config"
	"github.com/voltway/distctl/internal/logger"
	"github.com/voltway/distctl/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := server.New(server.Options{
		DatabaseURL:   cfg.Sim.DatabaseURL,
		JWTSecret:     cfg.Sim.JWTSecret,
		FixedCode:     cfg.Sim.FixedCode,
		SweepSchedule: cfg.Sim.SweepSchedule,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().Str("version", version).Msg("Starting auth simulator...")

	// Start HTTP server (this blocks)
	if err := srv.Start(cfg.Sim.Addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
