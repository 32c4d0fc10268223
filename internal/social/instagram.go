package social

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/models"
)

// InstagramClient reads media and insights through the Instagram Graph API.
type InstagramClient struct {
	api    graphAPI
	logger *zap.Logger
}

func NewInstagramClient(baseURL string, timeout time.Duration, logger *zap.Logger) *InstagramClient {
	return &InstagramClient{
		api:    newGraphAPI(baseURL, timeout),
		logger: logger,
	}
}

func (c *InstagramClient) Platform() models.Platform {
	return models.PlatformInstagram
}

type instagramMediaResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Caption       string `json:"caption"`
		MediaType     string `json:"media_type"`
		Permalink     string `json:"permalink"`
		Timestamp     string `json:"timestamp"`
		LikeCount     int    `json:"like_count"`
		CommentsCount int    `json:"comments_count"`
	} `json:"data"`
}

func (c *InstagramClient) ListRecentPosts(ctx context.Context, accountID, token string, limit int) ([]models.Post, error) {
	params := url.Values{}
	params.Set("fields", "id,caption,media_type,permalink,timestamp,like_count,comments_count")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("access_token", token)

	var resp instagramMediaResponse
	if err := c.api.get(ctx, fmt.Sprintf("/%s/media", accountID), params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list instagram media: %w", err)
	}

	posts := make([]models.Post, 0, len(resp.Data))
	for _, m := range resp.Data {
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			// Graph timestamps occasionally come back as +0000 offsets
			ts, _ = time.Parse("2006-01-02T15:04:05-0700", m.Timestamp)
		}
		posts = append(posts, models.Post{
			ID:            m.ID,
			Caption:       m.Caption,
			MediaType:     m.MediaType,
			Permalink:     m.Permalink,
			Timestamp:     ts,
			LikeCount:     m.LikeCount,
			CommentsCount: m.CommentsCount,
		})
	}

	return posts, nil
}

type instagramInsightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (c *InstagramClient) GetInsights(ctx context.Context, postIDs []string, token string) (map[string]models.Insights, error) {
	insights := make(map[string]models.Insights, len(postIDs))

	for _, id := range postIDs {
		params := url.Values{}
		params.Set("metric", "reach,total_interactions,saved,impressions")
		params.Set("access_token", token)

		var resp instagramInsightsResponse
		if err := c.api.get(ctx, fmt.Sprintf("/%s/insights", id), params, &resp); err != nil {
			// A single media item can reject insights (e.g. too old);
			// skip it rather than failing the whole batch.
			c.logger.Warn("Failed to fetch instagram insights",
				zap.Error(err),
				zap.String("media_id", id))
			continue
		}

		var in models.Insights
		for _, metric := range resp.Data {
			if len(metric.Values) == 0 {
				continue
			}
			value := metric.Values[0].Value
			switch strings.ToLower(metric.Name) {
			case "reach":
				in.Reach = value
			case "total_interactions", "engagement":
				in.Engagement = value
			case "saved":
				in.Saved = value
			case "impressions":
				in.Impressions = value
			}
		}
		insights[id] = in
	}

	return insights, nil
}
