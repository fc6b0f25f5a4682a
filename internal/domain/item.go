package domain

import "time"

// Item is the sole persisted entity: one deduplicated article from a feed.
//
// GroupID and GroupCount are never persisted; they are attached at read time
// when near-duplicate clustering collapses a result page.
type Item struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`

	ViewCount       int64   `json:"view_count"`
	ClickCount      int64   `json:"click_count"`
	PopularityScore float64 `json:"popularity_score"`

	GroupID    string `json:"group_id,omitempty"`
	GroupCount int    `json:"group_count,omitempty"`
}

// PopularityScoreOf derives the score from the two counters.
// Recomputed synchronously on every counter change, never cached stale.
func PopularityScoreOf(viewCount, clickCount int64) float64 {
	return 0.7*float64(viewCount) + 0.3*float64(clickCount)
}

// Draft is an unresolved record produced by the feed fetcher collaborator.
// It has no identity yet; the ingestion pipeline assigns one from the URL.
type Draft struct {
	URL         string
	Title       string
	Summary     string
	ImageURL    string
	PublishedAt time.Time
}

// Feed is one configured upstream source with its category assignment.
type Feed struct {
	URL      string
	Source   string
	Category Category
}
