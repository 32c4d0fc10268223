package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/llm"
	"github.com/glowline/pulsedesk/internal/models"
	"github.com/glowline/pulsedesk/internal/storage"
)

// ReplyOptions tune a single generation. Zero values fall back to the
// service defaults, or to the thread's configured model.
type ReplyOptions struct {
	Temperature float32
	MaxTokens   int
	Model       string
}

// Reply is the outcome of a successful reply generation.
type Reply struct {
	Text         string       `json:"reply"`
	Usage        models.Usage `json:"usage"`
	LastActivity time.Time    `json:"last_activity"`
}

// Defaults hold generation parameters applied when a request and its
// thread do not specify them.
type Defaults struct {
	Provider    string
	Temperature float32
	MaxTokens   int
}

// Service orchestrates assistant replies: it builds a bounded context,
// enriches it with live platform data, generates through the provider
// failover gateway, validates the output with a single corrective retry,
// and persists the result with running usage totals.
type Service struct {
	threads   storage.ThreadStorage
	gateway   *llm.Gateway
	enricher  *Enricher
	builder   *ContextBuilder
	validator *Validator
	defaults  Defaults
	logger    *zap.Logger
	now       func() time.Time

	// Replies to the same thread are serialized in-process so two
	// concurrent requests cannot race on usage totals or ordering.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(
	threads storage.ThreadStorage,
	gateway *llm.Gateway,
	enricher *Enricher,
	builder *ContextBuilder,
	validator *Validator,
	defaults Defaults,
	logger *zap.Logger,
) *Service {
	return &Service{
		threads:   threads,
		gateway:   gateway,
		enricher:  enricher,
		builder:   builder,
		validator: validator,
		defaults:  defaults,
		logger:    logger,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// AppendUserMessage records a human turn on the thread.
func (s *Service) AppendUserMessage(ctx context.Context, threadID, creatorID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty message content")
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   content,
		CreatorID: creatorID,
		CreatedAt: s.now(),
	}

	if _, err := s.threads.AppendMessage(ctx, threadID, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// GenerateAndSaveReply produces the next assistant turn for the thread and
// appends it durably. Exactly one message is appended on every outcome:
// the reply on success, an error turn when all providers are exhausted.
// Only llm.ErrProvidersExhausted crosses this boundary as an error from
// the generation stage itself.
func (s *Service) GenerateAndSaveReply(ctx context.Context, threadID string, opts ReplyOptions) (*Reply, error) {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("thread_id", thread.ID),
		zap.String("business_id", thread.BusinessID))

	history := s.builder.Build(thread)

	enrichment := s.enricher.Enrich(ctx, thread)
	if enrichment.Status == StatusDegraded {
		log.Info("Enrichment degraded, continuing without platform data",
			zap.String("reason", enrichment.Reason))
	}

	system := AssemblePrompt(thread, enrichment.Data)

	input := llm.GenerateInput{
		System:          system,
		History:         history,
		Temperature:     s.temperature(opts),
		MaxTokens:       s.maxTokens(opts),
		Model:           s.model(thread, opts),
		PrimaryProvider: s.primaryProvider(thread),
	}

	result, err := s.gateway.Generate(ctx, input)
	if err != nil {
		log.Error("All providers failed", zap.Error(err))
		s.appendErrorTurn(ctx, thread.ID, err, log)
		return nil, err
	}

	result = s.refocusIfNeeded(ctx, input, result, log)

	reply := &models.Message{
		ID:          uuid.New().String(),
		Role:        models.RoleAssistant,
		Content:     result.Content,
		Attachments: citedAttachments(result.Content, enrichment.Data),
		AI: &models.AIMeta{
			Provider:         result.Provider,
			Model:            result.Model,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
		CreatedAt: s.now(),
	}

	updated, err := s.threads.AppendMessage(ctx, thread.ID, reply)
	if err != nil {
		log.Error("Failed to persist assistant reply", zap.Error(err))
		return nil, err
	}

	log.Info("Reply generated",
		zap.String("provider", result.Provider),
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens))

	return &Reply{
		Text:         result.Content,
		Usage:        updated.Usage,
		LastActivity: updated.LastActivity,
	}, nil
}

// refocusIfNeeded performs the single corrective regeneration after a
// non-compliant draft. A non-empty corrected draft replaces the original;
// otherwise the original stands, uncorrected. Usage of both attempts is
// charged to the final message.
func (s *Service) refocusIfNeeded(ctx context.Context, input llm.GenerateInput, result *llm.GenerateResult, log *zap.Logger) *llm.GenerateResult {
	verdict := s.validator.Check(result.Content)
	if verdict.Compliant() {
		return result
	}

	log.Warn("Reply failed validation, attempting one refocus",
		zap.String("verdict", verdict.Kind.String()),
		zap.String("detail", verdict.Detail))

	retry := input
	retry.System = RefocusPrompt(input.System)

	corrected, err := s.gateway.Generate(ctx, retry)
	if err != nil || strings.TrimSpace(corrected.Content) == "" {
		log.Warn("Refocus attempt did not produce usable content, keeping original",
			zap.Error(err))
		return result
	}

	corrected.Usage.Add(result.Usage)
	return corrected
}

// appendErrorTurn persists a visible assistant turn stating that
// generation failed, preserving the audit trail. A persistence failure
// here is logged only; the provider error is what reaches the caller.
func (s *Service) appendErrorTurn(ctx context.Context, threadID string, cause error, log *zap.Logger) {
	msg := &models.Message{
		ID:      uuid.New().String(),
		Role:    models.RoleAssistant,
		Content: "I could not generate a reply right now. Please try again in a moment.",
		Error: &models.ErrorInfo{
			Message: cause.Error(),
			Code:    "provider_exhausted",
		},
		CreatedAt: s.now(),
	}

	if _, err := s.threads.AppendMessage(ctx, threadID, msg); err != nil {
		log.Error("Failed to persist error turn", zap.Error(err))
	}
}

func (s *Service) threadLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[id]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Service) temperature(opts ReplyOptions) float32 {
	if opts.Temperature > 0 {
		return opts.Temperature
	}
	return s.defaults.Temperature
}

func (s *Service) maxTokens(opts ReplyOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return s.defaults.MaxTokens
}

func (s *Service) model(thread *models.Thread, opts ReplyOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return thread.Model
}

func (s *Service) primaryProvider(thread *models.Thread) string {
	if thread.Provider != "" {
		return thread.Provider
	}
	return s.defaults.Provider
}

// citedAttachments builds post attachments for every enrichment post whose
// id appears in the reply's references.
func citedAttachments(content string, data *models.EnrichmentData) []models.Attachment {
	if data == nil {
		return nil
	}

	var attachments []models.Attachment
	for _, platform := range data.Platforms {
		for _, post := range platform.Posts {
			if post.ID != "" && strings.Contains(content, post.ID) {
				attachments = append(attachments, models.Attachment{
					Type:       models.AttachmentPost,
					ExternalID: post.ID,
					Permalink:  post.Permalink,
				})
			}
		}
	}
	return attachments
}
