// Package cluster implements the cluster engine (C7): transitive clustering
// at a similarity threshold, recursive adaptive subclustering of oversized
// clusters, and deterministic keyword labeling.
package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/vectormath"
)

// Snapshotter exposes the vector index's current ascending-id-ordered
// vectors, already unit-normalized.
type Snapshotter interface {
	Snapshot() ([]int64, [][]float32)
}

// ArticleHydrator resolves article ids to their display-ready records.
type ArticleHydrator interface {
	GetByIDs(ctx context.Context, ids []int64) ([]entity.Article, error)
}

// Config controls the recursive subclustering behavior.
type Config struct {
	MaxLeafSize          int
	SubclusterEnabled    bool
	SubclusterSimilarity float64
	SimilarityStep       float64
	MaxSimilarity        float64
	MaxDepth             int
}

func DefaultConfig(minSimilarity float64) Config {
	return Config{
		MaxLeafSize:          10,
		SubclusterEnabled:    true,
		SubclusterSimilarity: minSimilarity + 0.05,
		SimilarityStep:       0.05,
		MaxSimilarity:        0.95,
		MaxDepth:             5,
	}
}

// Engine builds cluster snapshots from the current vector index state.
type Engine struct {
	index    Snapshotter
	articles ArticleHydrator
	config   Config
}

func NewEngine(index Snapshotter, articles ArticleHydrator, config Config) *Engine {
	return &Engine{index: index, articles: articles, config: config}
}

// Build computes the full cluster tree at the given minimum similarity,
// assigning cluster ids in ascending seed-discovery order (0, 1, 2, ...).
func (e *Engine) Build(ctx context.Context, windowHours int, minSimilarity float64) (entity.ClusterSnapshot, error) {
	ids, vectors := e.index.Snapshot()

	components := transitiveComponents(ids, vectors, minSimilarity)

	hydrated, err := e.hydrate(ctx, ids)
	if err != nil {
		return entity.ClusterSnapshot{}, fmt.Errorf("cluster: hydrate: %w", err)
	}

	clusters := make(map[string]entity.ClusterNode, len(components))
	for clusterIdx, comp := range components {
		node := e.buildNode(comp, vectors, hydrated, 1)
		clusters[fmt.Sprintf("%d", clusterIdx)] = node
	}

	return entity.ClusterSnapshot{
		Key:      entity.SnapshotKey{HoursWindow: windowHours, MinSimilarity: minSimilarity},
		Clusters: clusters,
	}, nil
}

// component is a connected-component membership: indices into the parent
// ids/vectors slices, and the seed index each similarity is relative to.
type component struct {
	seedIdx    int
	memberIdxs []int
}

// transitiveComponents finds every connected component of the symmetric
// neighbor relation {j : L2²(vi,vj) ≤ 2(1−minSimilarity)} over ids/vectors,
// discarding singletons, seeding in ascending id order.
func transitiveComponents(ids []int64, vectors [][]float32, minSimilarity float64) []component {
	n := len(ids)
	order := ascendingIndexOrder(ids)
	maxL2Sq := vectormath.L2SqFromSimilarity(minSimilarity)

	assigned := make([]bool, n)
	var components []component

	for _, seed := range order {
		if assigned[seed] {
			continue
		}

		visited := map[int]struct{}{seed: {}}
		frontier := []int{seed}

		for len(frontier) > 0 {
			var next []int
			for _, v := range frontier {
				for j := 0; j < n; j++ {
					if j == v || assigned[j] {
						continue
					}
					if _, ok := visited[j]; ok {
						continue
					}
					if vectormath.L2Sq(vectors[v], vectors[j]) <= maxL2Sq {
						visited[j] = struct{}{}
						next = append(next, j)
					}
				}
			}
			frontier = next
		}

		if len(visited) < 2 {
			continue
		}

		members := make([]int, 0, len(visited))
		for idx := range visited {
			members = append(members, idx)
			assigned[idx] = true
		}
		sort.Slice(members, func(i, j int) bool { return ids[members[i]] < ids[members[j]] })

		components = append(components, component{seedIdx: seed, memberIdxs: members})
	}

	return components
}

func ascendingIndexOrder(ids []int64) []int {
	order := make([]int, len(ids))
	for i := range ids {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return ids[order[i]] < ids[order[j]] })
	return order
}

// buildNode turns one component into a display-ready cluster node,
// recursing into adaptive subclustering when the component is oversized.
func (e *Engine) buildNode(comp component, vectors [][]float32, hydrated map[int64]entity.Article, depth int) entity.ClusterNode {
	articles := e.toClusterArticles(comp, vectors, hydrated)
	node := entity.ClusterNode{
		Name:     label(articles),
		Articles: articles,
	}

	if !e.config.SubclusterEnabled || len(comp.memberIdxs) <= e.config.MaxLeafSize || depth > e.config.MaxDepth {
		return node
	}

	subVectors := make([][]float32, len(comp.memberIdxs))
	subIDsLocal := make([]int64, len(comp.memberIdxs))
	for i, idx := range comp.memberIdxs {
		subVectors[i] = vectors[idx]
		subIDsLocal[i] = int64(idx)
	}

	subgroups, ok := e.splitAdaptive(subIDsLocal, subVectors)
	if !ok {
		return node
	}

	subclusters := make([]entity.ClusterNode, 0, len(subgroups))
	for _, g := range subgroups {
		members := make([]int, len(g.memberIdxs))
		for i, localIdx := range g.memberIdxs {
			members[i] = comp.memberIdxs[localIdx]
		}
		sub := component{seedIdx: comp.memberIdxs[g.seedIdx], memberIdxs: members}
		subclusters = append(subclusters, e.buildNode(sub, vectors, hydrated, depth+1))
	}
	node.Subclusters = subclusters

	return node
}

// splitAdaptive raises the clustering threshold starting from
// SubclusterSimilarity until it produces at least two subgroups or the
// threshold cap is reached.
func (e *Engine) splitAdaptive(localIDs []int64, localVectors [][]float32) ([]component, bool) {
	tau := e.config.SubclusterSimilarity
	for tau <= e.config.MaxSimilarity {
		groups := transitiveComponents(localIDs, localVectors, tau)
		if len(groups) >= 2 {
			return groups, true
		}
		tau += e.config.SimilarityStep
	}
	return nil, false
}

func (e *Engine) toClusterArticles(comp component, vectors [][]float32, hydrated map[int64]entity.Article) []entity.ClusterArticle {
	articles := make([]entity.ClusterArticle, 0, len(comp.memberIdxs))
	for _, idx := range comp.memberIdxs {
		a, ok := hydrated[int64(idx)]
		if !ok {
			continue
		}
		l2sq := vectormath.L2Sq(vectors[comp.seedIdx], vectors[idx])
		articles = append(articles, entity.ClusterArticle{
			ID:          a.ID,
			Title:       a.Title,
			Summary:     a.Summary,
			URL:         a.URL,
			SourceURL:   a.SourceURL,
			FirstSeenAt: a.FirstSeenAt,
			LastSeenAt:  a.LastSeenAt,
			HitCount:    a.HitCount,
			Similarity:  vectormath.SimilarityFromL2Sq(l2sq),
		})
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].Similarity > articles[j].Similarity })
	return articles
}

func (e *Engine) hydrate(ctx context.Context, ids []int64) (map[int64]entity.Article, error) {
	articles, err := e.articles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byPosition := make(map[int64]entity.Article, len(ids))
	byID := make(map[int64]entity.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	for i, id := range ids {
		if a, ok := byID[id]; ok {
			byPosition[int64(i)] = a
		}
	}
	return byPosition, nil
}
