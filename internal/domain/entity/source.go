package entity

import (
	"fmt"
	"time"
)

// SourceType enumerates the two crawlable registry entry kinds.
type SourceType string

const (
	SourceTypeRSS      SourceType = "rss"
	SourceTypeHomepage SourceType = "homepage"
)

// IsValid reports whether t is one of the recognized source types.
func (t SourceType) IsValid() bool {
	return t == SourceTypeRSS || t == SourceTypeHomepage
}

// SourceEntry is a registered crawl target: either an RSS feed or an HTML homepage.
type SourceEntry struct {
	ID            int64
	URL           string
	Type          SourceType
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastCrawledAt *time.Time
}

// Validate checks that the entry carries a well-formed URL and a known type.
func (s *SourceEntry) Validate() error {
	if err := ValidateURL(s.URL); err != nil {
		return err
	}
	if !s.Type.IsValid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("type must be %q or %q", SourceTypeRSS, SourceTypeHomepage)}
	}
	return nil
}
