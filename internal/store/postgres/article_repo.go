package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/cgast/embird/internal/domain/entity"
)

// ArticleRepo is the durable store (C3): upsert-by-URL ingestion, windowed
// reads for clustering/indexing, and retention sweeps.
type ArticleRepo struct {
	db *sql.DB
}

func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// Exists reports whether an article with the given URL is already stored,
// letting callers skip re-fetching and re-embedding known URLs.
func (r *ArticleRepo) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM articles WHERE url = $1)`
	if err := r.db.QueryRowContext(ctx, query, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: check article existence: %w", err)
	}
	return exists, nil
}

// UpsertByURL inserts a new article or, if the URL is already known, bumps
// hit_count and last_seen_at while leaving title/summary/embedding untouched.
func (r *ArticleRepo) UpsertByURL(ctx context.Context, article entity.Article) (entity.ArticleUpsertResult, error) {
	var embeddingArg interface{}
	if article.Embedding != nil {
		embeddingArg = pgvector.NewVector(article.Embedding)
	}

	const query = `
		INSERT INTO articles (title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
		ON CONFLICT (url) DO UPDATE SET
			hit_count    = articles.hit_count + 1,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at,
			(xmax = 0) AS inserted`

	row := r.db.QueryRowContext(ctx, query,
		article.Title, article.URL, article.Summary, article.SourceURL,
		article.FirstSeenAt, article.LastSeenAt, embeddingArg)

	result, err := scanArticleUpsert(row)
	if err != nil {
		return entity.ArticleUpsertResult{}, fmt.Errorf("postgres: upsert article by url: %w", err)
	}
	return result, nil
}

// ListInWindow returns every article last seen within the last `hours`
// hours that carries an embedding, ordered oldest-first.
func (r *ArticleRepo) ListInWindow(ctx context.Context, hours int) ([]entity.Article, error) {
	const query = `
		SELECT id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at
		FROM articles
		WHERE last_seen_at >= now() - ($1 * interval '1 hour')
		  AND embedding IS NOT NULL
		ORDER BY last_seen_at ASC`

	rows, err := r.db.QueryContext(ctx, query, hours)
	if err != nil {
		return nil, fmt.Errorf("postgres: list articles in window: %w", err)
	}
	defer rows.Close()

	var articles []entity.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetByIDs returns the articles matching the given ids, in no particular order.
func (r *ArticleRepo) GetByIDs(ctx context.Context, ids []int64) ([]entity.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at
		FROM articles
		WHERE id = ANY($1::bigint[])`

	rows, err := r.db.QueryContext(ctx, query, idsToArray(ids))
	if err != nil {
		return nil, fmt.Errorf("postgres: get articles by ids: %w", err)
	}
	defer rows.Close()

	var articles []entity.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// DeleteOlderThan removes every article whose last_seen_at precedes cutoff,
// returning the number of rows removed.
func (r *ArticleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete older than: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOverflow removes the oldest (by last_seen_at) rows beyond maxRows,
// returning the number of rows removed.
func (r *ArticleRepo) DeleteOverflow(ctx context.Context, maxRows int64) (int64, error) {
	const query = `
		DELETE FROM articles
		WHERE id IN (
			SELECT id FROM articles
			ORDER BY last_seen_at ASC
			OFFSET $1
		)`

	res, err := r.db.ExecContext(ctx, query, maxRows)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete overflow: %w", err)
	}
	return res.RowsAffected()
}

// ListPaged returns articles last seen within the window, optionally
// restricted to a single source, newest-first, paginated, alongside the
// total row count matching the filter (ignoring limit/offset).
func (r *ArticleRepo) ListPaged(ctx context.Context, hours int, filter entity.ArticleFilter) ([]entity.Article, int64, error) {
	const countQuery = `
		SELECT count(*) FROM articles
		WHERE last_seen_at >= now() - ($1 * interval '1 hour')
		  AND ($2 = '' OR source_url = $2)`

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, hours, filter.SourceURL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count articles in window: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at
		FROM articles
		WHERE last_seen_at >= now() - ($1 * interval '1 hour')
		  AND ($2 = '' OR source_url = $2)
		ORDER BY last_seen_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, hours, filter.SourceURL, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list articles paged: %w", err)
	}
	defer rows.Close()

	var articles []entity.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, total, rows.Err()
}

// ListTrending returns the `limit` most-hit articles last seen within the
// window, ordered by hit count then recency.
func (r *ArticleRepo) ListTrending(ctx context.Context, hours, limit int) ([]entity.Article, error) {
	const query = `
		SELECT id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at
		FROM articles
		WHERE last_seen_at >= now() - ($1 * interval '1 hour')
		ORDER BY hit_count DESC, last_seen_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, hours, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trending articles: %w", err)
	}
	defer rows.Close()

	var articles []entity.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetByID returns a single article, or entity.ErrNotFound.
func (r *ArticleRepo) GetByID(ctx context.Context, id int64) (entity.Article, error) {
	const query = `
		SELECT id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at
		FROM articles WHERE id = $1`

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Article{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Article{}, fmt.Errorf("postgres: get article by id: %w", err)
	}
	return a, nil
}

// SearchByCosine ranks articles by cosine distance to query directly in the
// database. This is the C10 fallback path used when the in-memory vector
// index (C6) is empty or not yet warmed, grounded on the original
// implementation's direct use of pgvector's `<=>` operator.
func (r *ArticleRepo) SearchByCosine(ctx context.Context, query []float32, limit int, sourceURL string) ([]entity.SearchResult, error) {
	const q = `
		SELECT id, title, url, summary, source_url, first_seen_at, last_seen_at, hit_count, embedding, created_at, updated_at,
			1 - (embedding <=> $1) AS similarity
		FROM articles
		WHERE embedding IS NOT NULL
		  AND ($3 = '' OR source_url = $3)
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, pgvector.NewVector(query), limit, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: search by cosine: %w", err)
	}
	defer rows.Close()

	var results []entity.SearchResult
	for rows.Next() {
		var a entity.Article
		var vec pgvector.Vector
		var similarity float64
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.Summary, &a.SourceURL,
			&a.FirstSeenAt, &a.LastSeenAt, &a.HitCount, &vec, &a.CreatedAt, &a.UpdatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("postgres: scan search result: %w", err)
		}
		if vec.Slice() != nil {
			a.Embedding = entity.Embedding(vec.Slice())
		}
		results = append(results, entity.SearchResult{Article: a, Similarity: similarity})
	}
	return results, rows.Err()
}

// Stats computes the aggregate payload behind C10's stats endpoint. The
// totals/newest-ever figures scan the whole table; the timeline, lifespan,
// and top-sources breakdowns are computed in Go over the rows seen within
// windowHours, keeping every query here a single flat SELECT.
func (r *ArticleRepo) Stats(ctx context.Context, windowHours int) (entity.ArticleStats, error) {
	var stats entity.ArticleStats

	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM articles`).Scan(&stats.TotalArticles); err != nil {
		return entity.ArticleStats{}, fmt.Errorf("postgres: count all articles: %w", err)
	}

	var newest sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT max(last_seen_at) FROM articles`).Scan(&newest); err != nil {
		return entity.ArticleStats{}, fmt.Errorf("postgres: newest article: %w", err)
	}
	if newest.Valid {
		t := newest.Time
		stats.NewestSeenAt = &t
	}

	const windowQuery = `
		SELECT first_seen_at, last_seen_at, source_url
		FROM articles
		WHERE last_seen_at >= now() - ($1 * interval '1 hour')`

	rows, err := r.db.QueryContext(ctx, windowQuery, windowHours)
	if err != nil {
		return entity.ArticleStats{}, fmt.Errorf("postgres: stats window query: %w", err)
	}
	defer rows.Close()

	hourly := map[time.Time]int64{}
	lifespan := map[string]int64{}
	sources := map[string]int64{}
	var oldest *time.Time

	for rows.Next() {
		var firstSeen, lastSeen time.Time
		var sourceURL string
		if err := rows.Scan(&firstSeen, &lastSeen, &sourceURL); err != nil {
			return entity.ArticleStats{}, fmt.Errorf("postgres: scan stats row: %w", err)
		}
		if oldest == nil || lastSeen.Before(*oldest) {
			t := lastSeen
			oldest = &t
		}

		hourBucket := firstSeen.UTC().Truncate(time.Hour)
		hourly[hourBucket]++
		sources[sourceURL]++
		lifespan[lifespanLabel(lastSeen.Sub(firstSeen))]++
	}
	if err := rows.Err(); err != nil {
		return entity.ArticleStats{}, fmt.Errorf("postgres: iterate stats rows: %w", err)
	}

	stats.OldestInWindow = oldest
	stats.HourlyTimeline = sortedHourly(hourly)
	stats.LifespanBuckets = sortedLifespan(lifespan)
	stats.TopSources = sortedTopSources(sources, 10)
	return stats, nil
}

var lifespanOrder = []struct {
	label string
	max   time.Duration
}{
	{"under_1h", time.Hour},
	{"1h_to_6h", 6 * time.Hour},
	{"6h_to_24h", 24 * time.Hour},
	{"24h_to_72h", 72 * time.Hour},
	{"over_72h", 0},
}

func lifespanLabel(d time.Duration) string {
	for _, bucket := range lifespanOrder {
		if bucket.max == 0 {
			return bucket.label
		}
		if d < bucket.max {
			return bucket.label
		}
	}
	return "over_72h"
}

func sortedHourly(m map[time.Time]int64) []entity.HourlyCount {
	out := make([]entity.HourlyCount, 0, len(m))
	for hour, count := range m {
		out = append(out, entity.HourlyCount{HourStart: hour, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HourStart.Before(out[j].HourStart) })
	return out
}

func sortedLifespan(m map[string]int64) []entity.LifespanBucket {
	out := make([]entity.LifespanBucket, 0, len(lifespanOrder))
	for _, bucket := range lifespanOrder {
		out = append(out, entity.LifespanBucket{Label: bucket.label, Count: m[bucket.label]})
	}
	return out
}

func sortedTopSources(m map[string]int64, limit int) []entity.SourceCount {
	out := make([]entity.SourceCount, 0, len(m))
	for source, count := range m {
		out = append(out, entity.SourceCount{SourceURL: source, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].SourceURL < out[j].SourceURL
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func idsToArray(ids []int64) string {
	s := "{"
	for i, id := range ids {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", id)
	}
	return s + "}"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(s rowScanner) (entity.Article, error) {
	var a entity.Article
	var vec pgvector.Vector

	err := s.Scan(&a.ID, &a.Title, &a.URL, &a.Summary, &a.SourceURL,
		&a.FirstSeenAt, &a.LastSeenAt, &a.HitCount, &vec, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return entity.Article{}, err
	}
	if vec.Slice() != nil {
		a.Embedding = entity.Embedding(vec.Slice())
	}
	return a, nil
}

func scanArticleUpsert(s rowScanner) (entity.ArticleUpsertResult, error) {
	var a entity.Article
	var vec pgvector.Vector
	var inserted bool

	err := s.Scan(&a.ID, &a.Title, &a.URL, &a.Summary, &a.SourceURL,
		&a.FirstSeenAt, &a.LastSeenAt, &a.HitCount, &vec, &a.CreatedAt, &a.UpdatedAt, &inserted)
	if err != nil {
		return entity.ArticleUpsertResult{}, err
	}
	if vec.Slice() != nil {
		a.Embedding = entity.Embedding(vec.Slice())
	}
	return entity.ArticleUpsertResult{Article: a, Inserted: inserted}, nil
}
