package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/models"
)

// ErrProvidersExhausted is returned when every candidate provider failed.
var ErrProvidersExhausted = errors.New("all llm providers exhausted")

// GenerateInput is a gateway request. PrimaryProvider selects which
// provider is tried first; the remaining registered providers follow in
// registration order.
type GenerateInput struct {
	System          string
	History         []Turn
	Temperature     float32
	MaxTokens       int
	Model           string
	PrimaryProvider string
}

// GenerateResult is a normalized generation outcome.
type GenerateResult struct {
	Content  string
	Provider string
	Model    string
	Usage    models.Usage
}

// Gateway tries providers in order and returns the first usable response.
// A blank response counts as a failure, same as an error.
type Gateway struct {
	providers []Provider
	logger    *zap.Logger
}

func NewGateway(logger *zap.Logger, providers ...Provider) *Gateway {
	return &Gateway{
		providers: providers,
		logger:    logger,
	}
}

// Generate runs the failover chain. On total failure the returned error
// wraps ErrProvidersExhausted and carries the last underlying error.
func (g *Gateway) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	candidates := g.order(in.PrimaryProvider)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrProvidersExhausted)
	}

	req := Request{
		System:      in.System,
		History:     in.History,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		Model:       in.Model,
	}

	var lastErr error
	for _, provider := range candidates {
		resp, err := provider.Complete(ctx, req)
		if err == nil && strings.TrimSpace(resp.Content) == "" {
			err = fmt.Errorf("provider %s returned blank content", provider.Name())
		}
		if err != nil {
			lastErr = err
			g.logger.Warn("Provider attempt failed",
				zap.String("provider", provider.Name()),
				zap.Error(err))
			continue
		}

		return &GenerateResult{
			Content:  resp.Content,
			Provider: provider.Name(),
			Model:    resp.Model,
			Usage:    resp.Usage,
		}, nil
	}

	return nil, fmt.Errorf("%w: last error: %v", ErrProvidersExhausted, lastErr)
}

// order returns the registered providers with the primary moved to the
// front. An unknown primary name keeps registration order.
func (g *Gateway) order(primary string) []Provider {
	if primary == "" {
		return g.providers
	}

	ordered := make([]Provider, 0, len(g.providers))
	for _, p := range g.providers {
		if p.Name() == primary {
			ordered = append(ordered, p)
		}
	}
	for _, p := range g.providers {
		if p.Name() != primary {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
