package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/internal/config"
)

// Service answers visitor questions with an eino chat chain.
type Service struct {
	chatModel    model.ChatModel
	systemPrompt string
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the chat model from cfg and compiles the answer chain.
func NewService(ctx context.Context, cfg config.AIConfig, knowledge string) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create chat model")
	}
	return NewServiceWithModel(ctx, chatModel, knowledge)
}

// NewServiceWithModel compiles the answer chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, knowledge string) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{question}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile answer chain")
	}

	return &Service{
		chatModel:    chatModel,
		systemPrompt: BuildSystemPrompt(knowledge),
		chain:        runnable,
	}, nil
}

// Answer generates the whole answer in one call.
func (s *Service) Answer(ctx context.Context, question string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, s.input(question))
	if err != nil {
		return nil, errors.Wrap(err, "run answer chain")
	}

	log.Debug().Str("component", "ai").Int("answer_len", len(response.Content)).Msg("generated answer")
	return response, nil
}

// StreamAnswer streams answer chunks. Callers must Close the reader.
func (s *Service) StreamAnswer(ctx context.Context, question string) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chain.Stream(ctx, s.input(question))
	if err != nil {
		return nil, errors.Wrap(err, "stream answer chain")
	}
	return stream, nil
}

func (s *Service) input(question string) map[string]any {
	return map[string]any{
		"system":   s.systemPrompt,
		"question": question,
	}
}
