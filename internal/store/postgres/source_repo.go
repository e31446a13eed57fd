package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cgast/embird/internal/domain/entity"
)

// SourceRepo is the URL registry's persistence layer (C4): CRUD over
// crawl-target rows plus the last-crawled-at bookkeeping the scheduler uses.
type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) Create(ctx context.Context, source entity.SourceEntry) (entity.SourceEntry, error) {
	const query = `
		INSERT INTO sources (url, type)
		VALUES ($1, $2)
		RETURNING id, url, type, last_crawled_at, created_at, updated_at`

	row := r.db.QueryRowContext(ctx, query, source.URL, string(source.Type))
	return scanSource(row)
}

func (r *SourceRepo) Get(ctx context.Context, id int64) (entity.SourceEntry, error) {
	const query = `
		SELECT id, url, type, last_crawled_at, created_at, updated_at
		FROM sources WHERE id = $1`

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.SourceEntry{}, entity.ErrNotFound
	}
	return source, err
}

func (r *SourceRepo) List(ctx context.Context) ([]entity.SourceEntry, error) {
	const query = `
		SELECT id, url, type, last_crawled_at, created_at, updated_at
		FROM sources ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sources: %w", err)
	}
	defer rows.Close()

	var sources []entity.SourceEntry
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *SourceRepo) Update(ctx context.Context, source entity.SourceEntry) (entity.SourceEntry, error) {
	const query = `
		UPDATE sources
		SET url = $2, type = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, url, type, last_crawled_at, created_at, updated_at`

	row := r.db.QueryRowContext(ctx, query, source.ID, source.URL, string(source.Type))
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.SourceEntry{}, entity.ErrNotFound
	}
	return source, err
}

func (r *SourceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: delete source: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// MarkCrawled records the crawl timestamp the scheduler observed for this source.
func (r *SourceRepo) MarkCrawled(ctx context.Context, id int64, when time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sources SET last_crawled_at = $2, updated_at = now() WHERE id = $1`, id, when)
	if err != nil {
		return fmt.Errorf("postgres: mark crawled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: mark crawled: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func scanSource(s rowScanner) (entity.SourceEntry, error) {
	var src entity.SourceEntry
	var sourceType string
	var lastCrawledAt sql.NullTime

	err := s.Scan(&src.ID, &src.URL, &sourceType, &lastCrawledAt, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return entity.SourceEntry{}, err
	}

	src.Type = entity.SourceType(sourceType)
	if lastCrawledAt.Valid {
		t := lastCrawledAt.Time
		src.LastCrawledAt = &t
	}
	return src, nil
}
