package models

import (
	"errors"
	"time"
)

type Channel string

const (
	ChannelInternal  Channel = "internal"
	ChannelInstagram Channel = "instagram"
	ChannelFacebook  Channel = "facebook"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleExternal  Role = "external"
)

type AttachmentType string

const (
	AttachmentPost   AttachmentType = "post"
	AttachmentImage  AttachmentType = "image"
	AttachmentMetric AttachmentType = "metric"
	AttachmentFile   AttachmentType = "file"
)

// Usage holds token counters for a single generation or for a whole thread.
// Counters never decrease over the lifetime of a thread.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add merges another usage into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Attachment is a typed reference to external platform content.
type Attachment struct {
	Type       AttachmentType `json:"type"`
	ExternalID string         `json:"external_id,omitempty"`
	Permalink  string         `json:"permalink,omitempty"`
}

// AIMeta records which provider and model produced an assistant message
// and what it cost.
type AIMeta struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Reasoning        string `json:"reasoning,omitempty"`
}

// Usage returns the message's token contribution to thread totals.
func (m *AIMeta) Usage() Usage {
	return Usage{
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalTokens:      m.TotalTokens,
	}
}

// ErrorInfo marks an assistant turn that failed to generate.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Message is a single turn in a thread. Messages are append-only and
// ordered by CreatedAt; an error turn never replaces the user turn that
// triggered it.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatorID   string       `json:"creator_id,omitempty"`
	AI          *AIMeta      `json:"ai,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TokenUsage returns the message's usage contribution, zero for
// non-AI messages.
func (m *Message) TokenUsage() Usage {
	if m.AI == nil {
		return Usage{}
	}
	return m.AI.Usage()
}

func (m *Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem, RoleExternal:
	default:
		return errors.New("message: invalid role")
	}
	if m.Content == "" && m.Error == nil {
		return errors.New("message: empty content")
	}
	if m.CreatedAt.IsZero() {
		return errors.New("message: missing created_at")
	}
	return nil
}

// Thread is a persisted conversation between a business and the assistant,
// optionally tied to a connected social-platform account.
//
// Invariants, maintained by the storage layer on append:
//   - LastActivity equals the CreatedAt of the most recent message.
//   - Usage equals the sum of all messages' token contributions.
type Thread struct {
	ID            string            `json:"id"`
	BusinessID    string            `json:"business_id"`
	Participants  []string          `json:"participants"`
	IntegrationID string            `json:"integration_id,omitempty"`
	Channel       Channel           `json:"channel"`
	Purpose       string            `json:"purpose,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	Model         string            `json:"model,omitempty"`
	SystemPrompt  string            `json:"system_prompt,omitempty"`
	Messages      []Message         `json:"messages"`
	LastActivity  time.Time         `json:"last_activity"`
	Usage         Usage             `json:"usage"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (t *Thread) Validate() error {
	if t.ID == "" {
		return errors.New("thread: missing id")
	}
	if t.BusinessID == "" {
		return errors.New("thread: missing business_id")
	}
	switch t.Channel {
	case ChannelInternal, ChannelInstagram, ChannelFacebook:
	default:
		return errors.New("thread: invalid channel")
	}
	return nil
}

// LastMessage returns the most recently appended message, or nil for an
// empty thread.
func (t *Thread) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}
