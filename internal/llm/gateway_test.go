package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/llm"
	"github.com/glowline/pulsedesk/internal/models"
)

type stubProvider struct {
	name    string
	content string
	usage   models.Usage
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	model := req.Model
	if model == "" {
		model = p.name + "-default"
	}
	return &llm.Response{Content: p.content, Model: model, Usage: p.usage}, nil
}

func TestGatewayPrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "openai", content: "hello"}
	secondary := &stubProvider{name: "gemini", content: "fallback"}
	gateway := llm.NewGateway(zap.NewNop(), primary, secondary)

	result, err := gateway.Generate(context.Background(), llm.GenerateInput{
		PrimaryProvider: "openai",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestGatewayFailsOverToSecondary(t *testing.T) {
	primary := &stubProvider{name: "openai", err: errors.New("upstream 500")}
	secondary := &stubProvider{name: "gemini", content: "fallback reply"}
	gateway := llm.NewGateway(zap.NewNop(), primary, secondary)

	result, err := gateway.Generate(context.Background(), llm.GenerateInput{
		PrimaryProvider: "openai",
	})
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, "fallback reply", result.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestGatewayRespectsPrimarySelection(t *testing.T) {
	openai := &stubProvider{name: "openai", content: "from openai"}
	gemini := &stubProvider{name: "gemini", content: "from gemini"}
	gateway := llm.NewGateway(zap.NewNop(), openai, gemini)

	result, err := gateway.Generate(context.Background(), llm.GenerateInput{
		PrimaryProvider: "gemini",
	})
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, 0, openai.calls)
}

func TestGatewayBlankContentCountsAsFailure(t *testing.T) {
	primary := &stubProvider{name: "openai", content: "   \n"}
	secondary := &stubProvider{name: "gemini", content: "real content"}
	gateway := llm.NewGateway(zap.NewNop(), primary, secondary)

	result, err := gateway.Generate(context.Background(), llm.GenerateInput{
		PrimaryProvider: "openai",
	})
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.Provider)
}

func TestGatewayExhaustion(t *testing.T) {
	primary := &stubProvider{name: "openai", err: errors.New("down")}
	secondary := &stubProvider{name: "gemini", err: errors.New("also down")}
	gateway := llm.NewGateway(zap.NewNop(), primary, secondary)

	_, err := gateway.Generate(context.Background(), llm.GenerateInput{
		PrimaryProvider: "openai",
	})
	require.Error(t, err)

	assert.ErrorIs(t, err, llm.ErrProvidersExhausted)
	assert.Contains(t, err.Error(), "also down")
}

func TestGatewayNoProviders(t *testing.T) {
	gateway := llm.NewGateway(zap.NewNop())

	_, err := gateway.Generate(context.Background(), llm.GenerateInput{})
	assert.ErrorIs(t, err, llm.ErrProvidersExhausted)
}
