package entity

import "time"

// SnapshotKey identifies a cached cluster or UMAP snapshot by the window it
// was computed over and the minimum similarity threshold used.
type SnapshotKey struct {
	HoursWindow   int
	MinSimilarity float64
}

// ClusterNode is one node of the hierarchical cluster tree: either a leaf
// (Subclusters is nil) or an internal node that recursed further.
type ClusterNode struct {
	Name        string            `json:"name"`
	Articles    []ClusterArticle  `json:"articles"`
	Subclusters []ClusterNode     `json:"subclusters,omitempty"`
}

// ClusterArticle is the denormalized, display-ready article record embedded
// inside a cluster node, carrying the seed-relative similarity.
type ClusterArticle struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	SourceURL   string    `json:"source_url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	HitCount    int       `json:"hit_count"`
	Similarity  float64   `json:"similarity"`
}

// ClusterSnapshot is the materialized result of one cluster-engine run,
// keyed by cluster id (stringified, ascending from 0 in seed-discovery order).
type ClusterSnapshot struct {
	Key         SnapshotKey
	Clusters    map[string]ClusterNode
	RefreshedAt time.Time
}

// UMAPPoint is one row of a projection snapshot — either a news article or a
// preference vector overlay point.
type UMAPPoint struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	SourceURL   string  `json:"source_url,omitempty"`
	Description string  `json:"description,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	ClusterID   *string `json:"cluster_id,omitempty"`
	ClusterName string  `json:"cluster_name,omitempty"`
	Type        string  `json:"type"`
	Opacity     float64 `json:"opacity"`
}

// UMAPSnapshot is the materialized result of one projector run.
type UMAPSnapshot struct {
	Key         SnapshotKey
	Points      []UMAPPoint
	RefreshedAt time.Time
}
