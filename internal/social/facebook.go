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

// FacebookClient reads page posts and insights through the Facebook Graph API.
type FacebookClient struct {
	api    graphAPI
	logger *zap.Logger
}

func NewFacebookClient(baseURL string, timeout time.Duration, logger *zap.Logger) *FacebookClient {
	return &FacebookClient{
		api:    newGraphAPI(baseURL, timeout),
		logger: logger,
	}
}

func (c *FacebookClient) Platform() models.Platform {
	return models.PlatformFacebook
}

type facebookPostsResponse struct {
	Data []struct {
		ID           string `json:"id"`
		Message      string `json:"message"`
		PermalinkURL string `json:"permalink_url"`
		CreatedTime  string `json:"created_time"`
		Likes        struct {
			Summary struct {
				TotalCount int `json:"total_count"`
			} `json:"summary"`
		} `json:"likes"`
		Comments struct {
			Summary struct {
				TotalCount int `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
	} `json:"data"`
}

func (c *FacebookClient) ListRecentPosts(ctx context.Context, accountID, token string, limit int) ([]models.Post, error) {
	params := url.Values{}
	params.Set("fields", "id,message,permalink_url,created_time,likes.summary(true),comments.summary(true)")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("access_token", token)

	var resp facebookPostsResponse
	if err := c.api.get(ctx, fmt.Sprintf("/%s/posts", accountID), params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list facebook posts: %w", err)
	}

	posts := make([]models.Post, 0, len(resp.Data))
	for _, p := range resp.Data {
		ts, err := time.Parse(time.RFC3339, p.CreatedTime)
		if err != nil {
			ts, _ = time.Parse("2006-01-02T15:04:05-0700", p.CreatedTime)
		}
		posts = append(posts, models.Post{
			ID:            p.ID,
			Caption:       p.Message,
			MediaType:     "post",
			Permalink:     p.PermalinkURL,
			Timestamp:     ts,
			LikeCount:     p.Likes.Summary.TotalCount,
			CommentsCount: p.Comments.Summary.TotalCount,
		})
	}

	return posts, nil
}

type facebookInsightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (c *FacebookClient) GetInsights(ctx context.Context, postIDs []string, token string) (map[string]models.Insights, error) {
	insights := make(map[string]models.Insights, len(postIDs))

	for _, id := range postIDs {
		params := url.Values{}
		params.Set("metric", "post_impressions_unique,post_engaged_users,post_impressions")
		params.Set("access_token", token)

		var resp facebookInsightsResponse
		if err := c.api.get(ctx, fmt.Sprintf("/%s/insights", id), params, &resp); err != nil {
			c.logger.Warn("Failed to fetch facebook insights",
				zap.Error(err),
				zap.String("post_id", id))
			continue
		}

		var in models.Insights
		for _, metric := range resp.Data {
			if len(metric.Values) == 0 {
				continue
			}
			value := metric.Values[0].Value
			switch strings.ToLower(metric.Name) {
			case "post_impressions_unique":
				in.Reach = value
			case "post_engaged_users":
				in.Engagement = value
			case "post_impressions":
				in.Impressions = value
			}
		}
		insights[id] = in
	}

	return insights, nil
}
