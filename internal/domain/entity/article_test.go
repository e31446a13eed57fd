package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticle_Validate(t *testing.T) {
	now := time.Now()

	valid := func() Article {
		return Article{
			Title:       "Hello",
			URL:         "https://ex.com/a",
			FirstSeenAt: now,
			LastSeenAt:  now,
			HitCount:    1,
		}
	}

	t.Run("valid article passes", func(t *testing.T) {
		a := valid()
		assert.NoError(t, a.Validate())
	})

	t.Run("missing url fails", func(t *testing.T) {
		a := valid()
		a.URL = ""
		assert.Error(t, a.Validate())
	})

	t.Run("hit count below one fails", func(t *testing.T) {
		a := valid()
		a.HitCount = 0
		assert.Error(t, a.Validate())
	})

	t.Run("last seen before first seen fails", func(t *testing.T) {
		a := valid()
		a.LastSeenAt = now.Add(-time.Hour)
		assert.Error(t, a.Validate())
	})

	t.Run("wrong sized embedding fails", func(t *testing.T) {
		a := valid()
		a.Embedding = make(Embedding, EmbeddingDimension-1)
		assert.Error(t, a.Validate())
	})

	t.Run("correctly sized embedding passes", func(t *testing.T) {
		a := valid()
		a.Embedding = make(Embedding, EmbeddingDimension)
		assert.NoError(t, a.Validate())
	})
}
