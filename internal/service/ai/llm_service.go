package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/model/persona"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

// ErrNoUserMessage is returned when the outbound tail holds nothing to answer.
var ErrNoUserMessage = errors.New("conversation has no user message")

// Service answers outbound tails with the configured chat model.
type Service struct {
	chatModel model.BaseChatModel
	personas  persona.Store
	prompts   *PersonaPromptManager
	defaultID string
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the Ark-backed AI service.
func NewService(ctx context.Context, personas persona.Store, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, personas, cfg.PersonaID)
}

// NewServiceWithModel wires an existing chat model, answering as defaultPersona
// unless a caller picks another persona.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, personas persona.Store, defaultPersona string) (*Service, error) {
	if _, err := persona.Resolve(personas, defaultPersona); err != nil {
		return nil, fmt.Errorf("default persona %q: %w", defaultPersona, err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if defaultPersona == "" {
		defaultPersona = persona.DefaultID
	}

	return &Service{
		chatModel: chatModel,
		personas:  personas,
		prompts:   NewPersonaPromptManager(),
		defaultID: defaultPersona,
		chain:     runnable,
	}, nil
}

// DefaultPersona returns the persona used by Complete.
func (s *Service) DefaultPersona() persona.Persona {
	p, _ := persona.Resolve(s.personas, s.defaultID)
	return p
}

// Complete answers req as the default persona. It satisfies conversation.Completer.
func (s *Service) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	p := s.DefaultPersona()
	return s.generate(ctx, &p, req)
}

// ForPersona returns a completer answering as p.
func (s *Service) ForPersona(p persona.Persona) conversation.Completer {
	return conversation.CompleterFunc(func(ctx context.Context, req chat.CompletionRequest) (string, error) {
		return s.generate(ctx, &p, req)
	})
}

func (s *Service) generate(ctx context.Context, p *persona.Persona, req chat.CompletionRequest) (string, error) {
	input, history, err := s.chainInput(p, req)
	if err != nil {
		return "", err
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Info().
		Str("component", "ai").
		Str("user", req.User).
		Str("persona", p.ID).
		Int("history", history).
		Int("length", len(response.Content)).
		Msg("generated response")
	return response.Content, nil
}

// StreamCompletion 以流式方式生成回复，调用方负责关闭返回的 StreamReader
func (s *Service) StreamCompletion(ctx context.Context, p persona.Persona, req chat.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	input, history, err := s.chainInput(&p, req)
	if err != nil {
		return nil, err
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain: %w", err)
	}

	log.Debug().
		Str("component", "ai").
		Str("user", req.User).
		Str("persona", p.ID).
		Int("history", history).
		Msg("streaming response")
	return stream, nil
}

func (s *Service) chainInput(p *persona.Persona, req chat.CompletionRequest) (map[string]any, int, error) {
	history := buildHistoryMessages(req.Messages)
	if !hasUserMessage(history) {
		return nil, 0, ErrNoUserMessage
	}
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(p),
		"history": history,
	}, len(history), nil
}

// buildHistoryMessages converts the outbound tail to model messages, keeping
// at most conversation.TailSize entries even if a client sent more.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	tail := conversation.Tail(messages)
	if len(tail) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(tail))
	for _, msg := range tail {
		switch msg.Who {
		case chat.SpeakerUser:
			history = append(history, schema.UserMessage(msg.Message))
		case chat.SpeakerBot:
			history = append(history, schema.AssistantMessage(msg.Message, nil))
		}
	}
	return history
}

func hasUserMessage(history []*schema.Message) bool {
	for _, msg := range history {
		if msg.Role == schema.User {
			return true
		}
	}
	return false
}
