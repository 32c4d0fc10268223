package assistant

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/glowline/pulsedesk/internal/llm"
	"github.com/glowline/pulsedesk/internal/models"
)

// ContextBuilder turns a thread's message history into the bounded,
// sanitized context handed to generation. Building is pure: identical
// input always yields identical output.
type ContextBuilder struct {
	window     int
	tokenLimit int
	encoder    *tiktoken.Tiktoken
}

// NewContextBuilder creates a builder with a message-count window and a
// token cap. When the tiktoken encoding cannot be loaded the builder
// falls back to a word-count estimate.
func NewContextBuilder(window, tokenLimit int) *ContextBuilder {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		encoder = nil
	}
	return &ContextBuilder{
		window:     window,
		tokenLimit: tokenLimit,
		encoder:    encoder,
	}
}

// Build returns up to window messages, oldest first. Assistant turns
// containing banned technical vocabulary are excluded; user, system and
// external turns are never filtered. When a token limit is set, the
// oldest remaining turns are dropped until the context fits.
func (b *ContextBuilder) Build(thread *models.Thread) []llm.Turn {
	filtered := make([]llm.Turn, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		if msg.Content == "" {
			continue
		}
		if msg.Role == models.RoleAssistant && findBannedTerm(msg.Content) != "" {
			continue
		}
		filtered = append(filtered, llm.Turn{Role: msg.Role, Content: msg.Content})
	}

	if b.window > 0 && len(filtered) > b.window {
		filtered = filtered[len(filtered)-b.window:]
	}

	if b.tokenLimit > 0 {
		total := 0
		cut := len(filtered)
		for i := len(filtered) - 1; i >= 0; i-- {
			total += b.countTokens(filtered[i].Content)
			if total > b.tokenLimit {
				break
			}
			cut = i
		}
		filtered = filtered[cut:]
	}

	return filtered
}

func (b *ContextBuilder) countTokens(text string) int {
	if b.encoder != nil {
		return len(b.encoder.Encode(text, nil, nil))
	}
	// Rough estimate: English averages about 4/3 tokens per word.
	return len(strings.Fields(text)) * 4 / 3
}
