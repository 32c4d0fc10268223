package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/glowline/pulsedesk/internal/models"
)

// MemoryStorage implements ThreadStorage and IntegrationStorage in memory.
// Used for local development and tests.
type MemoryStorage struct {
	mu           sync.RWMutex
	threads      map[string]*models.Thread
	integrations map[string]*models.Integration
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		threads:      make(map[string]*models.Thread),
		integrations: make(map[string]*models.Integration),
	}
}

func (s *MemoryStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	if err := thread.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[thread.ID] = copyThread(thread)
	return nil
}

func (s *MemoryStorage) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, exists := s.threads[id]
	if !exists {
		return nil, ErrThreadNotFound
	}
	return copyThread(thread), nil
}

func (s *MemoryStorage) ListThreadsByBusiness(ctx context.Context, businessID string, limit int) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var threads []*models.Thread
	for _, t := range s.threads {
		if t.BusinessID == businessID {
			threads = append(threads, copyThread(t))
		}
	}

	sort.Slice(threads, func(i, j int) bool {
		return threads[i].LastActivity.After(threads[j].LastActivity)
	})

	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, threadID string, msg *models.Message) (*models.Thread, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return nil, ErrThreadNotFound
	}

	thread.Messages = append(thread.Messages, *msg)
	thread.LastActivity = msg.CreatedAt
	thread.Usage.Add(msg.TokenUsage())

	return copyThread(thread), nil
}

func (s *MemoryStorage) LinkIntegration(ctx context.Context, threadID, integrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return ErrThreadNotFound
	}
	thread.IntegrationID = integrationID
	return nil
}

func (s *MemoryStorage) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	integration, exists := s.integrations[id]
	if !exists {
		return nil, ErrIntegrationNotFound
	}
	cp := *integration
	return &cp, nil
}

func (s *MemoryStorage) FindConnectedIntegration(ctx context.Context, businessID string, platform models.Platform) (*models.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Integration
	for _, in := range s.integrations {
		if in.BusinessID != businessID || in.Platform != platform || in.Status != models.IntegrationConnected {
			continue
		}
		if found == nil || in.CreatedAt.After(found.CreatedAt) {
			found = in
		}
	}
	if found == nil {
		return nil, ErrIntegrationNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *MemoryStorage) ListConnectedIntegrations(ctx context.Context, businessID string) ([]*models.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var integrations []*models.Integration
	for _, in := range s.integrations {
		if in.BusinessID == businessID && in.Status == models.IntegrationConnected {
			cp := *in
			integrations = append(integrations, &cp)
		}
	}

	sort.Slice(integrations, func(i, j int) bool {
		return integrations[i].CreatedAt.After(integrations[j].CreatedAt)
	})
	return integrations, nil
}

func (s *MemoryStorage) SaveIntegration(ctx context.Context, integration *models.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *integration
	s.integrations[integration.ID] = &cp
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func copyThread(t *models.Thread) *models.Thread {
	cp := *t
	cp.Participants = append([]string(nil), t.Participants...)
	cp.Messages = append([]models.Message(nil), t.Messages...)
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
