package assistant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/assistant"
	"github.com/glowline/pulsedesk/internal/llm"
	"github.com/glowline/pulsedesk/internal/models"
	"github.com/glowline/pulsedesk/internal/storage"
)

// scriptedProvider replays a fixed sequence of responses, repeating the
// last one once the script runs out.
type scriptedProvider struct {
	name   string
	script []scriptedStep
	calls  int
}

type scriptedStep struct {
	content string
	usage   models.Usage
	err     error
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	step := p.script[min(p.calls, len(p.script)-1)]
	p.calls++
	if step.err != nil {
		return nil, step.err
	}
	return &llm.Response{Content: step.content, Model: "test-model", Usage: step.usage}, nil
}

const nonCompliantReply = `Here is some advice without any of the required structure.`

func newTestService(t *testing.T, store *storage.MemoryStorage, providers ...llm.Provider) *assistant.Service {
	t.Helper()
	return assistant.NewService(
		store,
		llm.NewGateway(zap.NewNop(), providers...),
		assistant.NewEnricher(store, store, 5, zap.NewNop()),
		assistant.NewContextBuilder(25, 0),
		assistant.NewValidator(),
		assistant.Defaults{Provider: "openai", Temperature: 0.7, MaxTokens: 1000},
		zap.NewNop(),
	)
}

func newTestThread(t *testing.T, store *storage.MemoryStorage) *models.Thread {
	t.Helper()
	thread := &models.Thread{
		ID:           "t1",
		BusinessID:   "b1",
		Channel:      models.ChannelInternal,
		Provider:     "openai",
		LastActivity: time.Now(),
	}
	require.NoError(t, store.CreateThread(context.Background(), thread))
	return thread
}

func TestGenerateAndSaveReplyAppendsExactlyOneMessage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	provider := &scriptedProvider{name: "openai", script: []scriptedStep{
		{content: compliantReply, usage: models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}}
	svc := newTestService(t, store, provider)

	_, err := svc.AppendUserMessage(ctx, thread.ID, "u1", "how do I grow reach?")
	require.NoError(t, err)

	before, _ := store.GetThread(ctx, thread.ID)
	reply, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)

	after, _ := store.GetThread(ctx, thread.ID)
	assert.Equal(t, len(before.Messages)+1, len(after.Messages))
	assert.Equal(t, compliantReply, reply.Text)

	last := after.LastMessage()
	require.NotNil(t, last.AI)
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Equal(t, "openai", last.AI.Provider)
	assert.Equal(t, last.CreatedAt, after.LastActivity)
}

func TestGenerateAndSaveReplyFailsOver(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	primary := &scriptedProvider{name: "openai", script: []scriptedStep{
		{err: errors.New("upstream down")},
	}}
	secondary := &scriptedProvider{name: "gemini", script: []scriptedStep{
		{content: compliantReply, usage: models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}}
	svc := newTestService(t, store, primary, secondary)

	_, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)

	after, _ := store.GetThread(ctx, thread.ID)
	require.NotNil(t, after.LastMessage().AI)
	assert.Equal(t, "gemini", after.LastMessage().AI.Provider)
}

func TestGenerateAndSaveReplyExhaustionPersistsErrorTurn(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	primary := &scriptedProvider{name: "openai", script: []scriptedStep{{err: errors.New("down")}}}
	secondary := &scriptedProvider{name: "gemini", script: []scriptedStep{{err: errors.New("also down")}}}
	svc := newTestService(t, store, primary, secondary)

	_, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrProvidersExhausted)

	after, _ := store.GetThread(ctx, thread.ID)
	require.Len(t, after.Messages, 1)

	last := after.LastMessage()
	assert.Equal(t, models.RoleAssistant, last.Role)
	require.NotNil(t, last.Error)
	assert.Equal(t, "provider_exhausted", last.Error.Code)
}

func TestGenerateAndSaveReplyRefocusesOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	provider := &scriptedProvider{name: "openai", script: []scriptedStep{
		{content: nonCompliantReply, usage: models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
		{content: compliantReply, usage: models.Usage{PromptTokens: 12, CompletionTokens: 6, TotalTokens: 18}},
	}}
	svc := newTestService(t, store, provider)

	reply, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)

	// One original attempt plus exactly one corrective attempt
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, compliantReply, reply.Text)

	// Still exactly one visible reply, charged with both attempts
	after, _ := store.GetThread(ctx, thread.ID)
	require.Len(t, after.Messages, 1)
	assert.Equal(t, 33, after.LastMessage().AI.TotalTokens)
}

func TestGenerateAndSaveReplyKeepsOriginalWhenRefocusFails(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	provider := &scriptedProvider{name: "openai", script: []scriptedStep{
		{content: nonCompliantReply, usage: models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
		{err: errors.New("second attempt failed")},
	}}
	svc := newTestService(t, store, provider)

	reply, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, nonCompliantReply, reply.Text)
}

func TestGenerateAndSaveReplyAccumulatesUsage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	provider := &scriptedProvider{name: "openai", script: []scriptedStep{
		{content: compliantReply, usage: models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
		{content: compliantReply, usage: models.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30}},
	}}
	svc := newTestService(t, store, provider)

	first, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, first.Usage)

	second, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.Usage{PromptTokens: 30, CompletionTokens: 15, TotalTokens: 45}, second.Usage)
}

func TestGenerateAndSaveReplySurvivesEnrichmentFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	thread := newTestThread(t, store)

	provider := &scriptedProvider{name: "openai", script: []scriptedStep{
		{content: compliantReply, usage: models.Usage{TotalTokens: 15}},
	}}

	// Integration lookups fail hard; the reply must still be produced
	svc := assistant.NewService(
		store,
		llm.NewGateway(zap.NewNop(), provider),
		assistant.NewEnricher(store, failingIntegrations{}, 5, zap.NewNop(), instagramFixture()),
		assistant.NewContextBuilder(25, 0),
		assistant.NewValidator(),
		assistant.Defaults{Provider: "openai", Temperature: 0.7, MaxTokens: 1000},
		zap.NewNop(),
	)

	reply, err := svc.GenerateAndSaveReply(ctx, thread.ID, assistant.ReplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, compliantReply, reply.Text)
}
