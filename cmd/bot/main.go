package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/s33g/lumin/internal/bot"
	"github.com/s33g/lumin/internal/config"
	"github.com/s33g/lumin/internal/logging"
	"github.com/s33g/lumin/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logging.New(config.LoggingConfig{}, os.Stderr)
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	mainLogger := logging.Component(logger, "main")
	mainLogger.Info().Str("path", *configPath).Msg("Configuration loaded")

	if err := cfg.ValidateBot(); err != nil {
		mainLogger.Fatal().Err(err).Msg("Invalid bot configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []bot.Option
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, bot.WithMetrics(metrics.NewStreamMetrics(reg)))
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, reg, mainLogger); err != nil {
				mainLogger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	mainLogger.Info().Msg("Creating bot...")
	b, err := bot.New(ctx, cfg, *configPath, logger, opts...)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to create bot")
	}

	if err := b.Start(); err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to start bot")
	}

	mainLogger.Info().Msg("Bot is running. Press Ctrl+C to exit.")
	<-ctx.Done()

	mainLogger.Info().Msg("Shutting down...")
	b.Stop()
}
