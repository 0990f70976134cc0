package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"smartgate_go/internal/config"
	"smartgate_go/internal/logging"
	"smartgate_go/internal/tui"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	envFile := os.Getenv("SMARTGATE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := config.LoadDotEnv(envFile); err != nil {
		log.Warn().Err(err).Msg("env load warning")
	}

	cfgPath := os.Getenv("SMARTGATE_CONFIG")
	if cfgPath == "" {
		cfgPath = "smartgate.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	stopSim, err := startSimSidecar(&cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("start simulator")
	}
	defer stopSim()

	closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("setup logging")
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	if err := tui.Run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("panel exited")
		os.Exit(1)
	}
}
