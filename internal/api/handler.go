package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/assistant"
	"github.com/glowline/pulsedesk/internal/llm"
	"github.com/glowline/pulsedesk/internal/models"
	"github.com/glowline/pulsedesk/internal/storage"
)

// Handler exposes the thread and reply operations over HTTP.
type Handler struct {
	threads storage.ThreadStorage
	service *assistant.Service
	logger  *zap.Logger
}

func NewHandler(threads storage.ThreadStorage, service *assistant.Service, logger *zap.Logger) *Handler {
	return &Handler{
		threads: threads,
		service: service,
		logger:  logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /threads", h.createThread)
	mux.HandleFunc("GET /threads/{id}", h.getThread)
	mux.HandleFunc("GET /businesses/{id}/threads", h.listThreads)
	mux.HandleFunc("POST /threads/{id}/messages", h.postMessage)
}

type createThreadRequest struct {
	BusinessID   string            `json:"business_id"`
	Participants []string          `json:"participants"`
	Channel      string            `json:"channel"`
	Purpose      string            `json:"purpose"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	SystemPrompt string            `json:"system_prompt"`
	Metadata     map[string]string `json:"metadata"`
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel := models.Channel(req.Channel)
	if channel == "" {
		channel = models.ChannelInternal
	}

	thread := &models.Thread{
		ID:           uuid.New().String(),
		BusinessID:   req.BusinessID,
		Participants: req.Participants,
		Channel:      channel,
		Purpose:      req.Purpose,
		Provider:     req.Provider,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		LastActivity: time.Now(),
		Metadata:     req.Metadata,
	}

	if err := h.threads.CreateThread(r.Context(), thread); err != nil {
		h.logger.Error("Failed to create thread", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, thread)
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	thread, err := h.threads.GetThread(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrThreadNotFound) {
			h.writeError(w, http.StatusNotFound, "thread not found")
			return
		}
		h.logger.Error("Failed to get thread", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, thread)
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.ListThreadsByBusiness(r.Context(), r.PathValue("id"), 50)
	if err != nil {
		h.logger.Error("Failed to list threads", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

type postMessageRequest struct {
	CreatorID   string  `json:"creator_id"`
	Content     string  `json:"content"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Model       string  `json:"model,omitempty"`
}

// postMessage appends the user turn and runs the reply pipeline.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.service.AppendUserMessage(r.Context(), threadID, req.CreatorID, req.Content); err != nil {
		if errors.Is(err, storage.ErrThreadNotFound) {
			h.writeError(w, http.StatusNotFound, "thread not found")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.service.GenerateAndSaveReply(r.Context(), threadID, assistant.ReplyOptions{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Model:       req.Model,
	})
	if err != nil {
		if errors.Is(err, llm.ErrProvidersExhausted) {
			h.writeError(w, http.StatusBadGateway, "reply generation failed")
			return
		}
		h.logger.Error("Reply pipeline failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
