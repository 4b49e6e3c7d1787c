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
	"github.com/zhouzirui/solution-connector/assistant/internal/handler/stream"
	"github.com/zhouzirui/solution-connector/assistant/internal/logging"
	"github.com/zhouzirui/solution-connector/assistant/internal/server"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/ai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("answer service stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	logging.Setup(cfg.Log)

	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	srv := server.New(cfg.Answerd, handler.NewAnswerRouter(newAnswerer(ctx, cfg.AI)))
	return server.Run(ctx, srv)
}

// newAnswerer returns nil when no model is usable; the router then answers 503.
func newAnswerer(ctx context.Context, cfg config.AIConfig) stream.Answerer {
	if !cfg.Enabled() {
		log.Warn().Msg("Ark 凭证未配置，问答接口将返回 503")
		return nil
	}

	var knowledge string
	if cfg.KnowledgeFile != "" {
		data, err := os.ReadFile(cfg.KnowledgeFile)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.KnowledgeFile).Msg("failed to read knowledge file, answering without it")
		} else {
			knowledge = string(data)
		}
	}

	svc, err := ai.NewService(ctx, cfg, knowledge)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize AI service - 请检查 Ark 模型相关环境变量")
		return nil
	}

	log.Info().Str("model", cfg.Model).Int("knowledge_len", len(knowledge)).Msg("AI service initialized successfully")
	return svc
}
