package llm

import (
	"context"

	"github.com/glowline/pulsedesk/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Turn is one prior conversation turn handed to a provider.
type Turn struct {
	Role    models.Role
	Content string
}

// Request is a provider-agnostic completion request. Model may be empty,
// in which case the provider uses its own default.
type Request struct {
	System      string
	History     []Turn
	Temperature float32
	MaxTokens   int
	Model       string
}

// Response is a normalized provider response. Usage is zero when the
// provider does not report token counts.
type Response struct {
	Content string
	Model   string
	Usage   models.Usage
}

// Provider is a single LLM backend. Implementations normalize their
// provider-specific response shapes so nothing downstream needs provider
// awareness.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}
