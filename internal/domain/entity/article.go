// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article, Source and PreferenceVector,
// along with their validation rules and domain-specific errors.
package entity

import (
	"fmt"
	"time"
)

// EmbeddingDimension is the fixed vector width produced by the embedding provider.
const EmbeddingDimension = 1024

// Embedding is a dense float vector of exactly EmbeddingDimension components.
type Embedding []float32

// Article represents a single ingested news item, keyed by URL.
//
// Lifecycle: created on first sighting with HitCount=1 and FirstSeenAt=LastSeenAt=now;
// on re-sighting at the same URL, HitCount increments and LastSeenAt advances, while
// Title/Summary/Embedding are left untouched.
type Article struct {
	ID          int64
	Title       string
	URL         string
	Summary     string
	SourceURL   string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	HitCount    int
	Embedding   Embedding
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the invariants listed in the data model: last-seen no earlier
// than first-seen, a positive hit count, and (if present) a correctly-sized embedding.
func (a *Article) Validate() error {
	if a.URL == "" {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if a.HitCount < 1 {
		return &ValidationError{Field: "hit_count", Message: "hit_count must be >= 1"}
	}
	if a.LastSeenAt.Before(a.FirstSeenAt) {
		return &ValidationError{Field: "last_seen_at", Message: "last_seen_at must not precede first_seen_at"}
	}
	if a.Embedding != nil && len(a.Embedding) != EmbeddingDimension {
		return &ValidationError{
			Field:   "embedding",
			Message: fmt.Sprintf("embedding must have %d components, got %d", EmbeddingDimension, len(a.Embedding)),
		}
	}
	return nil
}

// ArticleUpsertResult reports whether an upsert-by-URL inserted a new row or
// re-sighted (updated hit_count/last_seen_at on) an existing one.
type ArticleUpsertResult struct {
	Article  Article
	Inserted bool
}

// ArticleFilter narrows a windowed article listing.
type ArticleFilter struct {
	SourceURL string
	Limit     int
	Offset    int
}
