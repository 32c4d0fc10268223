package assistant

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glowline/pulsedesk/internal/models"
	"github.com/glowline/pulsedesk/internal/social"
	"github.com/glowline/pulsedesk/internal/storage"
)

type EnrichmentStatus string

const (
	StatusEnriched EnrichmentStatus = "enriched"
	StatusDegraded EnrichmentStatus = "degraded"
)

// EnrichmentResult reports the outcome of an enrichment attempt. Degraded
// results carry the reason so callers can observe failures without the
// pipeline ever failing on them.
type EnrichmentResult struct {
	Status EnrichmentStatus
	Reason string
	Data   *models.EnrichmentData
}

// Enricher pulls recent posts and engagement insights from the platforms
// a business has connected and aggregates them for prompt context.
//
// Enrichment is strictly best-effort: every failure degrades to "no
// enrichment" and is only logged, never returned as an error.
type Enricher struct {
	threads      storage.ThreadStorage
	integrations storage.IntegrationStorage
	clients      map[models.Platform]social.Client
	postLimit    int
	logger       *zap.Logger
}

func NewEnricher(
	threads storage.ThreadStorage,
	integrations storage.IntegrationStorage,
	postLimit int,
	logger *zap.Logger,
	clients ...social.Client,
) *Enricher {
	byPlatform := make(map[models.Platform]social.Client, len(clients))
	for _, c := range clients {
		byPlatform[c.Platform()] = c
	}
	return &Enricher{
		threads:      threads,
		integrations: integrations,
		clients:      byPlatform,
		postLimit:    postLimit,
		logger:       logger,
	}
}

// Enrich resolves usable platform credentials for the thread and fetches
// recent content with insights for each connected platform. Independent
// platform fetches run concurrently.
func (e *Enricher) Enrich(ctx context.Context, thread *models.Thread) EnrichmentResult {
	integrations, linked := e.resolveIntegrations(ctx, thread)
	if len(integrations) == 0 {
		return EnrichmentResult{Status: StatusDegraded, Reason: "no usable integration"}
	}

	// A fallback integration found at the business level is attached to
	// the thread so future calls resolve it directly. Best-effort: a
	// persistence failure here must not block enrichment.
	if thread.IntegrationID == "" && linked != "" {
		if err := e.threads.LinkIntegration(ctx, thread.ID, linked); err != nil {
			e.logger.Warn("Failed to link fallback integration to thread",
				zap.Error(err),
				zap.String("thread_id", thread.ID),
				zap.String("integration_id", linked))
		}
	}

	data := &models.EnrichmentData{Platforms: make(map[models.Platform]models.PlatformData)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, integration := range integrations {
		client, ok := e.clients[integration.Platform]
		if !ok {
			continue
		}
		in := integration
		g.Go(func() error {
			platformData, err := e.fetchPlatform(gctx, client, in)
			if err != nil {
				// Platform fetches are independent; one failing does not
				// spoil the others.
				e.logger.Warn("Enrichment fetch failed",
					zap.Error(err),
					zap.String("platform", string(in.Platform)),
					zap.String("thread_id", thread.ID))
				return nil
			}
			mu.Lock()
			data.Platforms[in.Platform] = *platformData
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(data.Platforms) == 0 {
		return EnrichmentResult{Status: StatusDegraded, Reason: "all platform fetches failed"}
	}

	return EnrichmentResult{Status: StatusEnriched, Data: data}
}

// resolveIntegrations returns the integrations to enrich from and, when a
// business-level fallback was used, the ID to link to the thread.
func (e *Enricher) resolveIntegrations(ctx context.Context, thread *models.Thread) ([]*models.Integration, string) {
	if thread.IntegrationID != "" {
		integration, err := e.integrations.GetIntegration(ctx, thread.IntegrationID)
		if err == nil && integration.Usable() {
			return []*models.Integration{integration}, ""
		}
		if err != nil {
			e.logger.Warn("Failed to load thread integration",
				zap.Error(err),
				zap.String("thread_id", thread.ID))
		}
	}

	// Fallback: the most recently connected integration of the owning
	// business matching the thread's source channel. Internal threads
	// have no channel platform, so every connected platform qualifies.
	if platform, ok := models.PlatformForChannel(thread.Channel); ok {
		integration, err := e.integrations.FindConnectedIntegration(ctx, thread.BusinessID, platform)
		if err != nil {
			e.logger.Warn("Integration lookup failed",
				zap.Error(err),
				zap.String("business_id", thread.BusinessID),
				zap.String("platform", string(platform)))
			return nil, ""
		}
		if !integration.Usable() {
			return nil, ""
		}
		return []*models.Integration{integration}, integration.ID
	}

	all, err := e.integrations.ListConnectedIntegrations(ctx, thread.BusinessID)
	if err != nil {
		e.logger.Warn("Integration lookup failed",
			zap.Error(err),
			zap.String("business_id", thread.BusinessID))
		return nil, ""
	}

	var usable []*models.Integration
	seen := make(map[models.Platform]bool)
	for _, in := range all {
		if !in.Usable() || seen[in.Platform] {
			continue
		}
		seen[in.Platform] = true
		usable = append(usable, in)
	}

	linked := ""
	if len(usable) > 0 {
		linked = usable[0].ID
	}
	return usable, linked
}

func (e *Enricher) fetchPlatform(ctx context.Context, client social.Client, integration *models.Integration) (*models.PlatformData, error) {
	posts, err := client.ListRecentPosts(ctx, integration.AccountID, integration.AccessToken, e.postLimit)
	if err != nil {
		return nil, err
	}

	postIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}

	insights, err := client.GetInsights(ctx, postIDs, integration.AccessToken)
	if err != nil {
		return nil, err
	}

	return &models.PlatformData{
		Posts:    posts,
		Insights: insights,
		Summary:  models.Summarize(posts, insights),
	}, nil
}
