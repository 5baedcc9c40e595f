package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/s33g/lumin/internal/chat"
	"github.com/s33g/lumin/internal/config"
	"github.com/s33g/lumin/internal/conversation"
	"github.com/s33g/lumin/internal/llm"
	"github.com/s33g/lumin/internal/logging"
	"github.com/s33g/lumin/internal/metrics"
	"github.com/s33g/lumin/internal/terminal"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults are used when empty)")
	model := flag.String("model", "", "Model to use, overriding the configuration")
	logLevel := flag.String("log-level", "", "Log level, overriding the configuration")
	flag.Parse()

	// A missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logging.New(config.LoggingConfig{}, os.Stderr)
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyOverrides(cfg, *model, *logLevel)

	logger := logging.New(cfg.Logging, os.Stderr)
	mainLogger := logging.Component(logger, "main")

	if cfg.APIKey() == "" {
		mainLogger.Warn().Str("env", cfg.OpenRouter.APIKeyEnv).Msg("API key is not set; requests will be refused")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var opts []chat.Option
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, chat.WithMetrics(metrics.NewStreamMetrics(reg)))
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, reg, mainLogger); err != nil {
				mainLogger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	client := llm.NewClient(cfg.OpenRouter, logger)
	service := chat.NewService(client, llm.SettingsFromConfig(cfg.Model, cfg.Stream), cfg.APIKey(), logger, opts...)
	sess := conversation.NewSession(uuid.NewString(), cfg.Model.SystemPrompt,
		conversation.WithTokenCounter(conversation.NewTokenCounter(), cfg.Model.ID))

	var replOpts []terminal.Option
	if home, err := os.UserHomeDir(); err == nil {
		replOpts = append(replOpts, terminal.WithHistoryFile(filepath.Join(home, ".lumin_history")))
	}

	repl := terminal.New(service, sess, logger, replOpts...)
	defer repl.Close()

	if err := repl.Run(ctx); err != nil {
		mainLogger.Error().Err(err).Msg("Terminal session failed")
	}
}

// applyOverrides replaces configured values with the ones given on the
// command line. Empty flags leave the configuration alone.
func applyOverrides(cfg *config.Config, model, logLevel string) {
	if model != "" {
		cfg.Model.ID = model
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
