package models

import "time"

// Post is a single piece of published platform content.
type Post struct {
	ID            string    `json:"id"`
	Caption       string    `json:"caption,omitempty"`
	MediaType     string    `json:"media_type,omitempty"`
	Permalink     string    `json:"permalink,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	LikeCount     int       `json:"like_count"`
	CommentsCount int       `json:"comments_count"`
}

// Insights holds engagement metrics for one post.
type Insights struct {
	Reach       int `json:"reach"`
	Engagement  int `json:"engagement"`
	Saved       int `json:"saved"`
	Impressions int `json:"impressions"`
}

// PlatformSummary aggregates insights across the fetched posts of one
// platform. EngagementRate is engagement as a percentage of reach.
type PlatformSummary struct {
	PostCount       int     `json:"post_count"`
	TotalReach      int     `json:"total_reach"`
	AvgReach        float64 `json:"avg_reach"`
	TotalEngagement int     `json:"total_engagement"`
	AvgEngagement   float64 `json:"avg_engagement"`
	EngagementRate  float64 `json:"engagement_rate"`
	TotalSaved      int     `json:"total_saved"`
}

// PlatformData is the enrichment payload for one platform.
type PlatformData struct {
	Posts    []Post              `json:"posts"`
	Insights map[string]Insights `json:"insights"`
	Summary  PlatformSummary     `json:"summary"`
}

// EnrichmentData is the full payload attached to a generation prompt.
type EnrichmentData struct {
	Platforms map[Platform]PlatformData `json:"platforms"`
}

// Summarize computes the aggregate summary for a set of posts and their
// insights.
func Summarize(posts []Post, insights map[string]Insights) PlatformSummary {
	s := PlatformSummary{PostCount: len(posts)}
	for _, p := range posts {
		in := insights[p.ID]
		s.TotalReach += in.Reach
		s.TotalEngagement += in.Engagement
		s.TotalSaved += in.Saved
	}
	if s.PostCount > 0 {
		s.AvgReach = float64(s.TotalReach) / float64(s.PostCount)
		s.AvgEngagement = float64(s.TotalEngagement) / float64(s.PostCount)
	}
	if s.TotalReach > 0 {
		s.EngagementRate = float64(s.TotalEngagement) / float64(s.TotalReach) * 100
	}
	return s
}
