package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/api"
	"github.com/glowline/pulsedesk/internal/assistant"
	"github.com/glowline/pulsedesk/internal/llm"
	"github.com/glowline/pulsedesk/internal/social"
	"github.com/glowline/pulsedesk/internal/storage"
	"github.com/glowline/pulsedesk/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store interface {
		storage.ThreadStorage
		storage.IntegrationStorage
	}
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		pg, err := storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		store = pg
	}
	defer store.Close()

	// Initialize LLM providers and the failover gateway
	providers := []llm.Provider{
		llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger),
	}
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Fatal("Failed to initialize gemini provider", zap.Error(err))
		}
		providers = append(providers, gemini)
	}
	gateway := llm.NewGateway(logger, providers...)

	// Initialize platform clients and the enricher
	timeout := time.Duration(cfg.Social.TimeoutSeconds) * time.Second
	enricher := assistant.NewEnricher(
		store,
		store,
		cfg.Assistant.PostLimit,
		logger,
		social.NewInstagramClient(cfg.Social.InstagramBaseURL, timeout, logger),
		social.NewFacebookClient(cfg.Social.FacebookBaseURL, timeout, logger),
	)

	// Initialize the reply service
	service := assistant.NewService(
		store,
		gateway,
		enricher,
		assistant.NewContextBuilder(cfg.Assistant.ContextWindow, cfg.Assistant.ContextTokens),
		assistant.NewValidator(),
		assistant.Defaults{
			Provider:    cfg.Assistant.DefaultProvider,
			Temperature: float32(cfg.Assistant.Temperature),
			MaxTokens:   cfg.Assistant.MaxTokens,
		},
		logger,
	)

	// Start the HTTP server
	mux := http.NewServeMux()
	api.NewHandler(store, service, logger).Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("Server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		os.Exit(1)
	}
}
