package registry

import (
	"time"

	"github.com/cgast/embird/internal/domain/entity"
)

type sourceDTO struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	Type          string     `json:"type"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toSourceDTO(s entity.SourceEntry) sourceDTO {
	return sourceDTO{
		ID: s.ID, URL: s.URL, Type: string(s.Type),
		LastCrawledAt: s.LastCrawledAt, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func toSourceDTOs(sources []entity.SourceEntry) []sourceDTO {
	out := make([]sourceDTO, 0, len(sources))
	for _, s := range sources {
		out = append(out, toSourceDTO(s))
	}
	return out
}
