// Package query implements the read-only news query surface (C10): windowed
// listing, trending, semantic search, similar-article lookup, cluster and
// UMAP snapshot reads, and aggregate stats.
package query

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cgast/embird/internal/common/pagination"
	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/handler/http/pathutil"
	"github.com/cgast/embird/internal/handler/http/requestid"
	"github.com/cgast/embird/internal/handler/http/respond"
	"github.com/cgast/embird/internal/index"
)

// ArticleStore is the subset of C3 this surface reads.
type ArticleStore interface {
	ListPaged(ctx context.Context, hours int, filter entity.ArticleFilter) ([]entity.Article, int64, error)
	ListInWindow(ctx context.Context, hours int) ([]entity.Article, error)
	ListTrending(ctx context.Context, hours, limit int) ([]entity.Article, error)
	GetByID(ctx context.Context, id int64) (entity.Article, error)
	SearchByCosine(ctx context.Context, queryVec []float32, limit int, sourceURL string) ([]entity.SearchResult, error)
	Stats(ctx context.Context, windowHours int) (entity.ArticleStats, error)
}

// SnapshotStore is the subset of C3 serving C7/C8 snapshot reads/writes.
type SnapshotStore interface {
	ReadLatestClusterSnapshot(ctx context.Context, key entity.SnapshotKey) (entity.ClusterSnapshot, bool, error)
	SaveClusterSnapshot(ctx context.Context, snapshot entity.ClusterSnapshot) error
	ReadLatestUMAPSnapshot(ctx context.Context, key entity.SnapshotKey) (entity.UMAPSnapshot, bool, error)
	SaveUMAPSnapshot(ctx context.Context, snapshot entity.UMAPSnapshot) error
}

// PreferenceStore is the subset of C3 the UMAP live-compute path reads.
type PreferenceStore interface {
	List(ctx context.Context) ([]entity.PreferenceVector, error)
}

// Embedder is the subset of C1 the search endpoint drives.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the subset of C6 the search/similar endpoints drive.
type VectorIndex interface {
	Size() int
	SearchKNN(query []float32, k int, minSim float64) []index.ScoredID
}

// ClusterEngine is the subset of C7 driving the live-compute fallback.
type ClusterEngine interface {
	Build(ctx context.Context, windowHours int, minSimilarity float64) (entity.ClusterSnapshot, error)
}

// Projector is the subset of C8 driving the UMAP live-compute fallback.
type Projector func(windowHours int, minSimilarity float64, articles []entity.Article, prefs []entity.PreferenceVector, clusters map[string]entity.ClusterNode, now time.Time) entity.UMAPSnapshot

// Handler serves every C10 route.
type Handler struct {
	Articles    ArticleStore
	Snapshots   SnapshotStore
	Preferences PreferenceStore
	Embedder    Embedder
	Index       VectorIndex
	Clusters    ClusterEngine
	Project     Projector

	DefaultWindowHours int
	DefaultMinSim      float64
	Pagination         pagination.Config
}

// Register mounts every C10 route on mux, following the teacher's
// prefix-dispatch idiom (plain http.ServeMux, ids parsed via pathutil)
// rather than Go's newer method+pattern mux syntax.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("/api/news", h.handleList)
	mux.HandleFunc("/api/news/trending", h.handleTrending)
	mux.HandleFunc("/api/news/search", h.handleSearch)
	mux.HandleFunc("/api/news/clusters", h.handleClusters)
	mux.HandleFunc("/api/news/umap", h.handleUMAP)
	mux.HandleFunc("/api/news/stats", h.handleStats)
	mux.HandleFunc("/api/news/", h.handleByID)
}

// handleByID dispatches "/api/news/{id}" and "/api/news/{id}/similar"; every
// other static sub-path under /api/news/ is registered above and takes
// priority via ServeMux's longest-match rule.
func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request) {
	const suffix = "/similar"
	if strings.HasSuffix(r.URL.Path, suffix) {
		id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, suffix), "/api/news/")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err)
			return
		}
		h.handleSimilar(w, r, id)
		return
	}

	id, err := pathutil.ExtractID(r.URL.Path, "/api/news/")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	h.handleGetByID(w, r, id)
}

// handleGetByID serves a single article by id.
func (h *Handler) handleGetByID(w http.ResponseWriter, r *http.Request, id int64) {
	article, err := h.Articles.GetByID(r.Context(), id)
	if errors.Is(err, entity.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toArticleDTO(article))
}

func (h *Handler) windowHours(r *http.Request) int {
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return h.DefaultWindowHours
}

func intParam(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := requestid.FromContext(r.Context())

	pageParams, err := pagination.ParseQueryParams(r, h.Pagination)
	if err != nil {
		pagination.RecordError("validation")
		pagination.LogError(slog.Default(), requestID, pageParams, err, "validation")
		respond.Error(w, http.StatusBadRequest, err)
		return
	}
	pagination.LogRequest(slog.Default(), requestID, "", pageParams)

	hours := h.windowHours(r)
	filter := entity.ArticleFilter{
		SourceURL: r.URL.Query().Get("source_url"),
		Limit:     pageParams.Limit,
		Offset:    pagination.CalculateOffset(pageParams.Page, pageParams.Limit),
	}

	articles, total, err := h.Articles.ListPaged(r.Context(), hours, filter)
	if err != nil {
		pagination.RecordError("database")
		pagination.RecordRequest(http.StatusInternalServerError, pageParams.Page)
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	pagination.UpdateTotalCount(total)

	metadata := pagination.Metadata{
		Total:      total,
		Page:       pageParams.Page,
		Limit:      pageParams.Limit,
		TotalPages: pagination.CalculateTotalPages(total, pageParams.Limit),
	}
	pagination.RecordRequest(http.StatusOK, pageParams.Page)
	pagination.RecordDuration("handler", time.Since(start).Seconds())
	pagination.LogResponse(slog.Default(), requestID, pageParams, len(articles), time.Since(start), http.StatusOK)
	respond.JSON(w, http.StatusOK, pagination.NewResponse(toArticleDTOs(articles), metadata))
}

func (h *Handler) handleTrending(w http.ResponseWriter, r *http.Request) {
	hours := h.windowHours(r)
	limit := intParam(r, "limit", 20)

	articles, err := h.Articles.ListTrending(r.Context(), hours, limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"articles": toArticleDTOs(articles)})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		respond.Error(w, http.StatusUnprocessableEntity, errors.New("query is required"))
		return
	}
	sourceURL := r.URL.Query().Get("source_url")
	limit := intParam(r, "limit", 20)

	vector, err := h.Embedder.Embed(r.Context(), q)
	if err != nil {
		respond.SafeError(w, http.StatusServiceUnavailable, err)
		return
	}

	k := limit
	if sourceURL != "" {
		k = limit * 5
	}

	results := h.searchKNNOrFallback(r.Context(), vector, k, limit, sourceURL)
	respond.JSON(w, http.StatusOK, map[string]any{"results": toSearchDTOs(results)})
}

func (h *Handler) searchKNNOrFallback(ctx context.Context, vector []float32, k, limit int, sourceURL string) []entity.SearchResult {
	if h.Index != nil && h.Index.Size() > 0 {
		scored := h.Index.SearchKNN(vector, k, 0.5)
		ids := make([]int64, 0, len(scored))
		bySim := make(map[int64]float64, len(scored))
		for _, s := range scored {
			ids = append(ids, s.ID)
			bySim[s.ID] = s.Similarity
		}
		articles, err := h.articlesByIDsFiltered(ctx, ids, sourceURL)
		if err == nil {
			out := make([]entity.SearchResult, 0, len(articles))
			for _, a := range articles {
				out = append(out, entity.SearchResult{Article: a, Similarity: bySim[a.ID]})
			}
			if len(out) > limit {
				out = out[:limit]
			}
			return out
		}
	}

	results, err := h.Articles.SearchByCosine(ctx, vector, limit, sourceURL)
	if err != nil {
		return nil
	}
	return results
}

// articlesByIDsFiltered hydrates KNN ids via the single-article lookup and
// drops any that don't match the optional source filter.
func (h *Handler) articlesByIDsFiltered(ctx context.Context, ids []int64, sourceURL string) ([]entity.Article, error) {
	out := make([]entity.Article, 0, len(ids))
	for _, id := range ids {
		a, err := h.Articles.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if sourceURL != "" && a.SourceURL != sourceURL {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (h *Handler) handleSimilar(w http.ResponseWriter, r *http.Request, id int64) {
	limit := intParam(r, "limit", 10)

	article, err := h.Articles.GetByID(r.Context(), id)
	if errors.Is(err, entity.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if article.Embedding == nil {
		respond.JSON(w, http.StatusOK, map[string]any{"results": []any{}})
		return
	}

	results := h.searchKNNOrFallback(r.Context(), article.Embedding, limit+1, limit+1, "")
	filtered := make([]entity.SearchResult, 0, len(results))
	for _, res := range results {
		if res.Article.ID == id {
			continue
		}
		filtered = append(filtered, res)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	respond.JSON(w, http.StatusOK, map[string]any{"results": toSearchDTOs(filtered)})
}

func (h *Handler) handleClusters(w http.ResponseWriter, r *http.Request) {
	hours := h.windowHours(r)
	minSim := h.DefaultMinSim
	key := entity.SnapshotKey{HoursWindow: hours, MinSimilarity: minSim}

	snapshot, ok, err := h.Snapshots.ReadLatestClusterSnapshot(r.Context(), key)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		snapshot, err = h.Clusters.Build(r.Context(), hours, minSim)
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		snapshot.RefreshedAt = time.Now()
		if err := h.Snapshots.SaveClusterSnapshot(r.Context(), snapshot); err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	respond.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleUMAP(w http.ResponseWriter, r *http.Request) {
	hours := h.windowHours(r)
	minSim := h.DefaultMinSim
	key := entity.SnapshotKey{HoursWindow: hours, MinSimilarity: minSim}

	snapshot, ok, err := h.Snapshots.ReadLatestUMAPSnapshot(r.Context(), key)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		snapshot, err = h.computeUMAPLive(r.Context(), hours, minSim)
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := h.Snapshots.SaveUMAPSnapshot(r.Context(), snapshot); err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	respond.JSON(w, http.StatusOK, snapshot)
}

// computeUMAPLive builds a fresh projection when no cached snapshot exists,
// reusing whatever cluster snapshot is on hand purely for tagging.
func (h *Handler) computeUMAPLive(ctx context.Context, hours int, minSim float64) (entity.UMAPSnapshot, error) {
	key := entity.SnapshotKey{HoursWindow: hours, MinSimilarity: minSim}

	articles, err := h.Articles.ListInWindow(ctx, hours)
	if err != nil {
		return entity.UMAPSnapshot{}, err
	}
	prefs, err := h.Preferences.List(ctx)
	if err != nil {
		return entity.UMAPSnapshot{}, err
	}

	var clusterNodes map[string]entity.ClusterNode
	if clusterSnapshot, ok, err := h.Snapshots.ReadLatestClusterSnapshot(ctx, key); err == nil && ok {
		clusterNodes = clusterSnapshot.Clusters
	}

	return h.Project(hours, minSim, articles, prefs, clusterNodes, time.Now()), nil
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	hours := h.windowHours(r)
	if hours <= 0 {
		hours = 48
	}

	stats, err := h.Articles.Stats(r.Context(), hours)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}
