package entity

import "time"

// HourlyCount is one bucket of the 48h ingestion timeline.
type HourlyCount struct {
	HourStart time.Time `json:"hour_start"`
	Count     int64     `json:"count"`
}

// LifespanBucket counts articles whose (last_seen_at - first_seen_at) falls
// into a named duration range.
type LifespanBucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// SourceCount is one row of the top-sources breakdown.
type SourceCount struct {
	SourceURL string `json:"source_url"`
	Count     int64  `json:"count"`
}

// ArticleStats is the aggregate payload behind the stats query endpoint.
type ArticleStats struct {
	TotalArticles   int64            `json:"total_articles"`
	NewestSeenAt    *time.Time       `json:"newest_seen_at,omitempty"`
	OldestInWindow  *time.Time       `json:"oldest_in_window,omitempty"`
	HourlyTimeline  []HourlyCount    `json:"hourly_timeline"`
	LifespanBuckets []LifespanBucket `json:"lifespan_buckets"`
	TopSources      []SourceCount    `json:"top_sources"`
}

// SearchResult is one row of a similarity search response, carrying the
// query-relative similarity alongside the display fields.
type SearchResult struct {
	Article    Article `json:"-"`
	Similarity float64 `json:"similarity"`
}
