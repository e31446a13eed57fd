package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/index"
)

type fakeSource struct {
	articles []entity.Article
}

func (f *fakeSource) ListInWindow(ctx context.Context, hours int) ([]entity.Article, error) {
	return f.articles, nil
}

func vec(dims ...float32) entity.Embedding {
	v := make([]float32, entity.EmbeddingDimension)
	copy(v, dims)
	return v
}

func TestIndex_RebuildAndSearchKNN(t *testing.T) {
	src := &fakeSource{articles: []entity.Article{
		{ID: 2, Embedding: vec(1, 0)},
		{ID: 1, Embedding: vec(1, 0.01)},
		{ID: 3, Embedding: vec(0, 1)},
	}}
	idx := index.New(src)
	require.NoError(t, idx.Rebuild(context.Background(), 24))
	assert.Equal(t, 3, idx.Size())

	hits := idx.SearchKNN(vec(1, 0), 2, 0.0)
	require.Len(t, hits, 2)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{hits[0].ID, hits[1].ID})
}

func TestIndex_Rebuild_SkipsWrongShapeEmbeddings(t *testing.T) {
	src := &fakeSource{articles: []entity.Article{
		{ID: 1, Embedding: []float32{0.1, 0.2}},
		{ID: 2, Embedding: vec(1, 0)},
	}}
	idx := index.New(src)
	require.NoError(t, idx.Rebuild(context.Background(), 24))
	assert.Equal(t, 1, idx.Size())
}

func TestIndex_SearchKNN_EmptyIndex(t *testing.T) {
	idx := index.New(&fakeSource{})
	hits := idx.SearchKNN(vec(1, 0), 5, 0.0)
	assert.Nil(t, hits)
}

func TestIndex_SearchAll_Threshold(t *testing.T) {
	src := &fakeSource{articles: []entity.Article{
		{ID: 1, Embedding: vec(1, 0)},
		{ID: 2, Embedding: vec(0, 1)},
	}}
	idx := index.New(src)
	require.NoError(t, idx.Rebuild(context.Background(), 24))

	matches := idx.SearchAll(vec(1, 0), 0.1)
	assert.Contains(t, matches, int64(1))
	assert.NotContains(t, matches, int64(2))
}
