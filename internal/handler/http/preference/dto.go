package preference

import (
	"time"

	"github.com/cgast/embird/internal/domain/entity"
)

type preferenceDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	HasEmbedding bool     `json:"has_embedding"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPreferenceDTO(p entity.PreferenceVector) preferenceDTO {
	return preferenceDTO{
		ID: p.ID, Title: p.Title, Description: p.Description,
		HasEmbedding: len(p.Embedding) > 0,
		CreatedAt:    p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toPreferenceDTOs(prefs []entity.PreferenceVector) []preferenceDTO {
	out := make([]preferenceDTO, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, toPreferenceDTO(p))
	}
	return out
}
