package main

import (
	"github.com/rs/zerolog/log"

	"nse-pulse/app"
	"nse-pulse/config"
)

func main() {
	// Load config from the environment (.env when present)
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	config.SetupLogger(cfg.LogLevel, cfg.Environment)

	// Create and start app
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application stopped")
	}
}
