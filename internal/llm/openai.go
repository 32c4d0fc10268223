package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/models"
)

// OpenAIProvider implements Provider on the OpenAI chat completion API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewOpenAIProvider(apiKey, defaultModel string, logger *zap.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		client:       openai.NewClient(apiKey),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// openAIRole maps internal roles onto the chat API's role set. External
// turns (platform webhooks etc.) read as user content.
func openAIRole(role models.Role) string {
	switch role {
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
