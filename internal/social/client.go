package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/glowline/pulsedesk/internal/models"
)

// Client fetches published content and engagement insights from one
// social platform on behalf of a connected account.
type Client interface {
	Platform() models.Platform
	ListRecentPosts(ctx context.Context, accountID, token string, limit int) ([]models.Post, error)
	GetInsights(ctx context.Context, postIDs []string, token string) (map[string]models.Insights, error)
}

// graphAPI is the shared HTTP plumbing for Graph-style platform APIs.
type graphAPI struct {
	baseURL    string
	httpClient *http.Client
}

func newGraphAPI(baseURL string, timeout time.Duration) graphAPI {
	return graphAPI{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// get performs a GET against path with query params and decodes the JSON
// body into out.
func (g graphAPI) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", g.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr graphError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("graph api error (code %d): %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("graph api returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
