package projector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/projector"
)

func embed(dims ...float32) entity.Embedding {
	v := make([]float32, entity.EmbeddingDimension)
	copy(v, dims)
	return v
}

func TestBuild_EmitsOnePointPerEmbeddedRow(t *testing.T) {
	now := time.Now()
	articles := []entity.Article{
		{ID: 1, Title: "a", URL: "https://example.com/a", LastSeenAt: now, Embedding: embed(1, 0)},
		{ID: 2, Title: "b", URL: "https://example.com/b", LastSeenAt: now.Add(-30 * time.Hour), Embedding: embed(0, 1)},
		{ID: 3, Title: "no embedding"},
	}
	prefs := []entity.PreferenceVector{
		{ID: 1, Title: "p", Description: "d", Embedding: embed(0.5, 0.5)},
	}

	snapshot := projector.Build(24, 0.55, articles, prefs, nil, now, projector.Config{NNeighbors: 2, MinDist: 0.1, Seed: 1, Iterations: 20})

	require.Len(t, snapshot.Points, 3)

	var newsCount, prefCount int
	for _, p := range snapshot.Points {
		switch p.Type {
		case "news_item":
			newsCount++
		case "preference_vector":
			prefCount++
			assert.Equal(t, 1.0, p.Opacity)
		}
	}
	assert.Equal(t, 2, newsCount)
	assert.Equal(t, 1, prefCount)
}

func TestBuild_TagsArticlesWithTopClusters(t *testing.T) {
	now := time.Now()
	articles := []entity.Article{
		{ID: 1, Title: "a", LastSeenAt: now, Embedding: embed(1, 0)},
		{ID: 2, Title: "b", LastSeenAt: now, Embedding: embed(0.99, 0.01)},
	}
	clusters := map[string]entity.ClusterNode{
		"0": {Name: "Politics", Articles: []entity.ClusterArticle{{ID: 1}, {ID: 2}}},
	}

	snapshot := projector.Build(24, 0.55, articles, nil, clusters, now, projector.Config{NNeighbors: 1, MinDist: 0.1, Seed: 1, Iterations: 10})

	for _, p := range snapshot.Points {
		require.NotNil(t, p.ClusterID)
		assert.Equal(t, "0", *p.ClusterID)
		assert.Equal(t, "Politics", p.ClusterName)
	}
}

func TestOpacity_Boundaries(t *testing.T) {
	now := time.Now()
	articles := []entity.Article{
		{ID: 1, LastSeenAt: now, Embedding: embed(1, 0)},
		{ID: 2, LastSeenAt: now.Add(-25 * time.Hour), Embedding: embed(0, 1)},
	}
	snapshot := projector.Build(48, 0.55, articles, nil, nil, now, projector.Config{NNeighbors: 1, MinDist: 0.1, Seed: 1, Iterations: 5})

	byID := map[string]entity.UMAPPoint{}
	for _, p := range snapshot.Points {
		byID[p.ID] = p
	}
	assert.InDelta(t, 0.8, byID["1"].Opacity, 1e-9)
	assert.InDelta(t, 0.2, byID["2"].Opacity, 1e-9)
}
