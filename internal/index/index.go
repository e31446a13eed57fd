// Package index is the in-memory vector index (C6): a flat, brute-force
// nearest-neighbor scan rebuilt periodically from the durable store.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/vectormath"
)

// ArticleSource reads in-window embedded articles for a rebuild.
type ArticleSource interface {
	ListInWindow(ctx context.Context, hours int) ([]entity.Article, error)
}

// ScoredID is one hit from a KNN search: the article id and its similarity
// to the query, in [0,1] for unit-norm vectors.
type ScoredID struct {
	ID         int64
	Similarity float64
}

// Index is a flat, rebuild-then-atomic-swap nearest-neighbor index over
// unit-normalized article embeddings. Safe for concurrent reads and a single
// concurrent Rebuild; readers never observe a partially-built state.
type Index struct {
	mu          sync.RWMutex
	ids         []int64
	vectors     [][]float32
	lastRebuilt map[int64]struct{}

	source ArticleSource
}

func New(source ArticleSource) *Index {
	return &Index{source: source}
}

// Rebuild reads every in-window, correctly-shaped embedded article from the
// source, normalizes each vector, and atomically swaps them in, ordered by
// id ascending (the determinism contract ties are broken against).
func (idx *Index) Rebuild(ctx context.Context, windowHours int) error {
	articles, err := idx.source.ListInWindow(ctx, windowHours)
	if err != nil {
		return fmt.Errorf("index: rebuild: %w", err)
	}

	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })

	ids := make([]int64, 0, len(articles))
	vectors := make([][]float32, 0, len(articles))
	seen := make(map[int64]struct{}, len(articles))
	for _, a := range articles {
		if len(a.Embedding) != entity.EmbeddingDimension {
			continue
		}
		ids = append(ids, a.ID)
		vectors = append(vectors, vectormath.Normalize(a.Embedding))
		seen[a.ID] = struct{}{}
	}

	idx.mu.Lock()
	idx.ids = ids
	idx.vectors = vectors
	idx.lastRebuilt = seen
	idx.mu.Unlock()

	return nil
}

// Size returns the number of vectors currently indexed.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// SearchKNN normalizes query and returns the k nearest ids with similarity
// at least minSim, nearest first, ties broken by ascending id.
func (idx *Index) SearchKNN(query []float32, k int, minSim float64) []ScoredID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.ids) == 0 {
		return nil
	}

	normQuery := vectormath.Normalize(query)
	hits := make([]ScoredID, 0, len(idx.ids))
	for i, id := range idx.ids {
		l2sq := vectormath.L2Sq(normQuery, idx.vectors[i])
		sim := vectormath.SimilarityFromL2Sq(l2sq)
		if sim >= minSim {
			hits = append(hits, ScoredID{ID: id, Similarity: sim})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// SearchAll returns every indexed id whose squared L2 distance to query is
// at most maxL2Sq, with no k cutoff — used by the cluster engine's
// neighbor relation.
func (idx *Index) SearchAll(query []float32, maxL2Sq float64) map[int64]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	normQuery := vectormath.Normalize(query)
	out := make(map[int64]struct{})
	for i, id := range idx.ids {
		if vectormath.L2Sq(normQuery, idx.vectors[i]) <= maxL2Sq {
			out[id] = struct{}{}
		}
	}
	return out
}

// Snapshot returns a read-only copy of the current ids and unit-normalized
// vectors, used by the cluster engine to build its own local sub-indexes.
func (idx *Index) Snapshot() ([]int64, [][]float32) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]int64, len(idx.ids))
	copy(ids, idx.ids)
	vectors := make([][]float32, len(idx.vectors))
	for i, v := range idx.vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		vectors[i] = cp
	}
	return ids, vectors
}
