package storage

import (
	"context"
	"errors"

	"github.com/glowline/pulsedesk/internal/models"
)

var (
	ErrThreadNotFound      = errors.New("thread not found")
	ErrIntegrationNotFound = errors.New("integration not found")
)

// ThreadStorage persists conversation threads and their messages.
type ThreadStorage interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	ListThreadsByBusiness(ctx context.Context, businessID string, limit int) ([]*models.Thread, error)

	// AppendMessage appends a message to a thread, advances the thread's
	// last-activity timestamp to the message's CreatedAt, and adds the
	// message's token usage to the thread totals. It returns the updated
	// thread.
	AppendMessage(ctx context.Context, threadID string, msg *models.Message) (*models.Thread, error)

	// LinkIntegration attaches a connected integration to a thread so
	// later enrichment calls resolve it directly.
	LinkIntegration(ctx context.Context, threadID, integrationID string) error

	Close() error
}

// IntegrationStorage looks up social-platform credentials for a business.
type IntegrationStorage interface {
	GetIntegration(ctx context.Context, id string) (*models.Integration, error)

	// FindConnectedIntegration returns the most recently created connected
	// integration of the business on the given platform, or
	// ErrIntegrationNotFound.
	FindConnectedIntegration(ctx context.Context, businessID string, platform models.Platform) (*models.Integration, error)

	// ListConnectedIntegrations returns every connected integration of the
	// business, newest first.
	ListConnectedIntegrations(ctx context.Context, businessID string) ([]*models.Integration, error)

	SaveIntegration(ctx context.Context, integration *models.Integration) error
}
