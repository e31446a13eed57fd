package query

import (
	"time"

	"github.com/cgast/embird/internal/domain/entity"
)

// articleDTO is the wire shape for an article row; entity.Article itself
// carries no JSON tags since the domain layer stays presentation-agnostic.
type articleDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	SourceURL   string    `json:"source_url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	HitCount    int       `json:"hit_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toArticleDTO(a entity.Article) articleDTO {
	return articleDTO{
		ID: a.ID, Title: a.Title, URL: a.URL, Summary: a.Summary, SourceURL: a.SourceURL,
		FirstSeenAt: a.FirstSeenAt, LastSeenAt: a.LastSeenAt, HitCount: a.HitCount,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func toArticleDTOs(articles []entity.Article) []articleDTO {
	out := make([]articleDTO, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleDTO(a))
	}
	return out
}

type searchResultDTO struct {
	articleDTO
	Similarity float64 `json:"similarity"`
}

func toSearchDTOs(results []entity.SearchResult) []searchResultDTO {
	out := make([]searchResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, searchResultDTO{articleDTO: toArticleDTO(r.Article), Similarity: r.Similarity})
	}
	return out
}
