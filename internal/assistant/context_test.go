package assistant_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowline/pulsedesk/internal/assistant"
	"github.com/glowline/pulsedesk/internal/models"
)

func threadWithMessages(msgs ...models.Message) *models.Thread {
	return &models.Thread{
		ID:         "t1",
		BusinessID: "b1",
		Channel:    models.ChannelInternal,
		Messages:   msgs,
	}
}

func msg(role models.Role, content string) models.Message {
	return models.Message{Role: role, Content: content, CreatedAt: time.Now()}
}

func TestBuildContextWindowBound(t *testing.T) {
	var msgs []models.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, msg(models.RoleUser, fmt.Sprintf("message %d", i)))
	}

	builder := assistant.NewContextBuilder(20, 0)
	turns := builder.Build(threadWithMessages(msgs...))

	require.Len(t, turns, 20)
	// Oldest first, ending with the newest message
	assert.Equal(t, "message 20", turns[0].Content)
	assert.Equal(t, "message 39", turns[19].Content)
}

func TestBuildContextFiltersBannedAssistantTurns(t *testing.T) {
	thread := threadWithMessages(
		msg(models.RoleUser, "my reach dropped"),
		msg(models.RoleAssistant, "It looks like a rate limit problem, try again later"),
		msg(models.RoleAssistant, "Your carousels perform better than single posts"),
		msg(models.RoleUser, "what should I do next"),
	)

	builder := assistant.NewContextBuilder(20, 0)
	turns := builder.Build(thread)

	require.Len(t, turns, 3)
	for _, turn := range turns {
		assert.NotContains(t, turn.Content, "rate limit")
	}
}

func TestBuildContextNeverFiltersUserOrSystem(t *testing.T) {
	thread := threadWithMessages(
		msg(models.RoleSystem, "the api key rotation policy is strict"),
		msg(models.RoleUser, "I saw a rate limit error on my dashboard, help"),
	)

	builder := assistant.NewContextBuilder(20, 0)
	turns := builder.Build(thread)

	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleSystem, turns[0].Role)
	assert.Equal(t, models.RoleUser, turns[1].Role)
}

func TestBuildContextIdempotent(t *testing.T) {
	thread := threadWithMessages(
		msg(models.RoleUser, "hello"),
		msg(models.RoleAssistant, "hi, how can I help"),
		msg(models.RoleUser, "grow my engagement"),
	)

	builder := assistant.NewContextBuilder(2, 0)
	first := builder.Build(thread)
	second := builder.Build(thread)

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestBuildContextTokenCapDropsOldest(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "word "
	}
	thread := threadWithMessages(
		msg(models.RoleUser, long),
		msg(models.RoleUser, "short question"),
	)

	builder := assistant.NewContextBuilder(20, 50)
	turns := builder.Build(thread)

	require.Len(t, turns, 1)
	assert.Equal(t, "short question", turns[0].Content)
}
