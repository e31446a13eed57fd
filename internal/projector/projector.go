// Package projector is the UMAP projector (C8): it places in-window
// articles and preference vectors into a shared 2-D layout, tags each point
// with its top-20-ranked cluster (if any), and computes display opacity
// from recency.
package projector

import (
	"fmt"
	"sort"
	"time"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/vectormath"
)

// clusterTag is what a top-level cluster contributes to every article it
// (transitively, including subclusters) contains.
type clusterTag struct {
	id   string
	name string
}

const topClusterLimit = 20

// Build projects the given embedded articles and preference vectors into a
// shared 2-D layout and assigns cluster_id/cluster_name from the top-20
// clusters by total article count in clusters.
func Build(windowHours int, minSimilarity float64, articles []entity.Article, prefs []entity.PreferenceVector, clusters map[string]entity.ClusterNode, now time.Time, cfg Config) entity.UMAPSnapshot {
	tagByArticleID := tagTopClusters(clusters)

	embeddedArticles := make([]entity.Article, 0, len(articles))
	for _, a := range articles {
		if len(a.Embedding) == entity.EmbeddingDimension {
			embeddedArticles = append(embeddedArticles, a)
		}
	}
	embeddedPrefs := make([]entity.PreferenceVector, 0, len(prefs))
	for _, p := range prefs {
		if len(p.Embedding) == entity.EmbeddingDimension {
			embeddedPrefs = append(embeddedPrefs, p)
		}
	}

	vectors := make([][]float32, 0, len(embeddedArticles)+len(embeddedPrefs))
	for _, a := range embeddedArticles {
		vectors = append(vectors, vectormath.Normalize(a.Embedding))
	}
	for _, p := range embeddedPrefs {
		vectors = append(vectors, vectormath.Normalize(p.Embedding))
	}

	positions := layout(vectors, cfg)

	points := make([]entity.UMAPPoint, 0, len(vectors))
	for i, a := range embeddedArticles {
		pos := positions[i]
		lastSeen := a.LastSeenAt
		pt := entity.UMAPPoint{
			ID:         fmt.Sprintf("%d", a.ID),
			Title:      a.Title,
			URL:        a.URL,
			SourceURL:  a.SourceURL,
			LastSeenAt: &lastSeen,
			X:          pos.x,
			Y:          pos.y,
			Type:       "news_item",
			Opacity:    opacity(a.LastSeenAt, now),
		}
		if tag, ok := tagByArticleID[a.ID]; ok {
			id := tag.id
			pt.ClusterID = &id
			pt.ClusterName = tag.name
		}
		points = append(points, pt)
	}

	for i, p := range embeddedPrefs {
		pos := positions[len(embeddedArticles)+i]
		points = append(points, entity.UMAPPoint{
			ID:          fmt.Sprintf("pref_%d", p.ID),
			Title:       p.Title,
			Description: p.Description,
			X:           pos.x,
			Y:           pos.y,
			Type:        "preference_vector",
			Opacity:     1.0,
		})
	}

	return entity.UMAPSnapshot{
		Key:         entity.SnapshotKey{HoursWindow: windowHours, MinSimilarity: minSimilarity},
		Points:      points,
		RefreshedAt: now,
	}
}

// opacity returns 0.8 for articles seen within the last hour, 0.2 for
// articles not seen in the last 24 hours, and a linear interpolation
// between the two otherwise.
func opacity(lastSeenAt, now time.Time) float64 {
	hoursOld := now.Sub(lastSeenAt).Hours()
	switch {
	case hoursOld <= 1:
		return 0.8
	case hoursOld >= 24:
		return 0.2
	default:
		return 0.8 - 0.6*(hoursOld-1)/23
	}
}

// tagTopClusters counts total (recursive) articles per top-level cluster,
// keeps the top 20 by count, and returns a lookup from article id to that
// cluster's id/name.
func tagTopClusters(clusters map[string]entity.ClusterNode) map[int64]clusterTag {
	type ranked struct {
		id    string
		name  string
		count int
	}

	rankedClusters := make([]ranked, 0, len(clusters))
	for id, node := range clusters {
		rankedClusters = append(rankedClusters, ranked{id: id, name: node.Name, count: countArticles(node)})
	}
	sort.Slice(rankedClusters, func(i, j int) bool {
		if rankedClusters[i].count != rankedClusters[j].count {
			return rankedClusters[i].count > rankedClusters[j].count
		}
		return rankedClusters[i].id < rankedClusters[j].id
	})

	if len(rankedClusters) > topClusterLimit {
		rankedClusters = rankedClusters[:topClusterLimit]
	}

	tags := make(map[int64]clusterTag)
	for _, rc := range rankedClusters {
		node := clusters[rc.id]
		for _, articleID := range articleIDs(node) {
			tags[articleID] = clusterTag{id: rc.id, name: rc.name}
		}
	}
	return tags
}

func countArticles(node entity.ClusterNode) int {
	return len(articleIDs(node))
}

func articleIDs(node entity.ClusterNode) []int64 {
	ids := make([]int64, 0, len(node.Articles))
	for _, a := range node.Articles {
		ids = append(ids, a.ID)
	}
	return ids
}
