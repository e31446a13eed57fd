package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceEntry_Validate(t *testing.T) {
	t.Run("valid rss entry passes", func(t *testing.T) {
		s := SourceEntry{URL: "https://ex.com/feed", Type: SourceTypeRSS}
		assert.NoError(t, s.Validate())
	})

	t.Run("valid homepage entry passes", func(t *testing.T) {
		s := SourceEntry{URL: "https://ex.com", Type: SourceTypeHomepage}
		assert.NoError(t, s.Validate())
	})

	t.Run("invalid type fails", func(t *testing.T) {
		s := SourceEntry{URL: "https://ex.com", Type: "atom"}
		assert.Error(t, s.Validate())
	})

	t.Run("bad url fails", func(t *testing.T) {
		s := SourceEntry{URL: "not-a-url", Type: SourceTypeRSS}
		assert.Error(t, s.Validate())
	})
}

func TestSourceType_IsValid(t *testing.T) {
	assert.True(t, SourceTypeRSS.IsValid())
	assert.True(t, SourceTypeHomepage.IsValid())
	assert.False(t, SourceType("atom").IsValid())
}
