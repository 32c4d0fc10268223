package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/glowline/pulsedesk/internal/models"
)

// GeminiProvider implements Provider on the Gemini API.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string, logger *zap.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
		logger:       logger,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	var contents []*genai.Content
	for _, turn := range req.History {
		var role genai.Role = genai.RoleUser
		if turn.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	res, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty text")
	}

	var usage models.Usage
	if res.UsageMetadata != nil {
		usage = models.Usage{
			PromptTokens:     int(res.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(res.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(res.UsageMetadata.TotalTokenCount),
		}
	}

	return &Response{
		Content: text,
		Model:   model,
		Usage:   usage,
	}, nil
}
