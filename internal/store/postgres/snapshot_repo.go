package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cgast/embird/internal/domain/entity"
)

// SnapshotRepo persists the cluster-engine (C7) and projector (C8) outputs,
// keyed by the window/threshold pair they were computed for.
type SnapshotRepo struct {
	db *sql.DB
}

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) SaveClusterSnapshot(ctx context.Context, snapshot entity.ClusterSnapshot) error {
	payload, err := json.Marshal(snapshot.Clusters)
	if err != nil {
		return fmt.Errorf("postgres: marshal cluster snapshot: %w", err)
	}

	const query = `
		INSERT INTO news_clusters (hours_window, min_similarity, clusters, refreshed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hours_window, min_similarity) DO UPDATE SET
			clusters     = EXCLUDED.clusters,
			refreshed_at = EXCLUDED.refreshed_at`

	_, err = r.db.ExecContext(ctx, query, snapshot.Key.HoursWindow, snapshot.Key.MinSimilarity, payload, snapshot.RefreshedAt)
	if err != nil {
		return fmt.Errorf("postgres: save cluster snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) ReadLatestClusterSnapshot(ctx context.Context, key entity.SnapshotKey) (entity.ClusterSnapshot, bool, error) {
	const query = `
		SELECT clusters, refreshed_at FROM news_clusters
		WHERE hours_window = $1 AND min_similarity = $2`

	var payload []byte
	snapshot := entity.ClusterSnapshot{Key: key}
	err := r.db.QueryRowContext(ctx, query, key.HoursWindow, key.MinSimilarity).Scan(&payload, &snapshot.RefreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ClusterSnapshot{}, false, nil
	}
	if err != nil {
		return entity.ClusterSnapshot{}, false, fmt.Errorf("postgres: read cluster snapshot: %w", err)
	}

	if err := json.Unmarshal(payload, &snapshot.Clusters); err != nil {
		return entity.ClusterSnapshot{}, false, fmt.Errorf("postgres: unmarshal cluster snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (r *SnapshotRepo) SaveUMAPSnapshot(ctx context.Context, snapshot entity.UMAPSnapshot) error {
	payload, err := json.Marshal(snapshot.Points)
	if err != nil {
		return fmt.Errorf("postgres: marshal umap snapshot: %w", err)
	}

	const query = `
		INSERT INTO news_umap (hours_window, min_similarity, points, refreshed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hours_window, min_similarity) DO UPDATE SET
			points       = EXCLUDED.points,
			refreshed_at = EXCLUDED.refreshed_at`

	_, err = r.db.ExecContext(ctx, query, snapshot.Key.HoursWindow, snapshot.Key.MinSimilarity, payload, snapshot.RefreshedAt)
	if err != nil {
		return fmt.Errorf("postgres: save umap snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) ReadLatestUMAPSnapshot(ctx context.Context, key entity.SnapshotKey) (entity.UMAPSnapshot, bool, error) {
	const query = `
		SELECT points, refreshed_at FROM news_umap
		WHERE hours_window = $1 AND min_similarity = $2`

	var payload []byte
	snapshot := entity.UMAPSnapshot{Key: key}
	err := r.db.QueryRowContext(ctx, query, key.HoursWindow, key.MinSimilarity).Scan(&payload, &snapshot.RefreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.UMAPSnapshot{}, false, nil
	}
	if err != nil {
		return entity.UMAPSnapshot{}, false, fmt.Errorf("postgres: read umap snapshot: %w", err)
	}

	if err := json.Unmarshal(payload, &snapshot.Points); err != nil {
		return entity.UMAPSnapshot{}, false, fmt.Errorf("postgres: unmarshal umap snapshot: %w", err)
	}
	return snapshot, true, nil
}
