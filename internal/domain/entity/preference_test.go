package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferenceVector_Validate(t *testing.T) {
	t.Run("valid vector passes", func(t *testing.T) {
		p := PreferenceVector{Title: "Climate", Description: "Climate policy news"}
		assert.NoError(t, p.Validate())
	})

	t.Run("missing title fails", func(t *testing.T) {
		p := PreferenceVector{Description: "desc"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing description fails", func(t *testing.T) {
		p := PreferenceVector{Title: "t"}
		assert.Error(t, p.Validate())
	})

	t.Run("embedding may be absent", func(t *testing.T) {
		p := PreferenceVector{Title: "t", Description: "d"}
		assert.NoError(t, p.Validate())
		assert.Nil(t, p.Embedding)
	})
}
