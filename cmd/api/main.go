package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/internal/config"
	"github.com/zhouzirui/solution-connector/assistant/internal/handler"
	"github.com/zhouzirui/solution-connector/assistant/internal/logging"
	"github.com/zhouzirui/solution-connector/assistant/internal/server"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/answer"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/assistant"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("widget server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	logging.Setup(cfg.Log)

	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	client := answer.NewClient(cfg.Answer.Endpoint, nil)
	opts := assistant.Options{
		IdleTimeout:  cfg.Answer.IdleTimeout,
		ErrorMessage: cfg.Answer.ErrorMessage,
	}
	registry := assistant.NewRegistry(func() *assistant.Controller {
		return assistant.NewController(client, opts)
	})
	defer registry.Close()

	registry.SetEvictionConfig(cfg.Widget.IdleTTL, cfg.Widget.EvictInterval())
	registry.StartEvictionLoop(ctx)

	log.Info().
		Str("endpoint", client.Endpoint()).
		Dur("idle_timeout", opts.IdleTimeout).
		Dur("widget_idle_ttl", cfg.Widget.IdleTTL).
		Msg("assistant widget configured")

	srv := server.New(cfg.Server, handler.NewRouter(registry))
	return server.Run(ctx, srv)
}
