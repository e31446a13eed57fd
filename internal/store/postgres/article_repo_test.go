package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/store/postgres"
)

func articleUpsertRow(a entity.Article, inserted bool) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "url", "summary", "source_url", "first_seen_at", "last_seen_at",
		"hit_count", "embedding", "created_at", "updated_at", "inserted",
	})
	var embedding interface{}
	if a.Embedding != nil {
		embedding = vectorLiteral(a.Embedding)
	}
	return rows.AddRow(a.ID, a.Title, a.URL, a.Summary, a.SourceURL, a.FirstSeenAt, a.LastSeenAt,
		a.HitCount, embedding, a.CreatedAt, a.UpdatedAt, inserted)
}

func articleRow(a entity.Article) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "url", "summary", "source_url", "first_seen_at", "last_seen_at",
		"hit_count", "embedding", "created_at", "updated_at",
	})
	var embedding interface{}
	if a.Embedding != nil {
		embedding = vectorLiteral(a.Embedding)
	}
	return rows.AddRow(a.ID, a.Title, a.URL, a.Summary, a.SourceURL, a.FirstSeenAt, a.LastSeenAt,
		a.HitCount, embedding, a.CreatedAt, a.UpdatedAt)
}

func TestArticleRepo_UpsertByURL_Inserted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	want := entity.Article{
		ID: 1, Title: "headline", URL: "https://example.com/a", Summary: "sum",
		SourceURL: "https://example.com/feed.xml", FirstSeenAt: now, LastSeenAt: now, HitCount: 1,
		Embedding: []float32{0.1, 0.2},
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnRows(articleUpsertRow(want, true))

	repo := postgres.NewArticleRepo(db)
	result, err := repo.UpsertByURL(context.Background(), entity.Article{
		Title: want.Title, URL: want.URL, Summary: want.Summary, SourceURL: want.SourceURL,
		FirstSeenAt: now, LastSeenAt: now, Embedding: want.Embedding,
	})
	require.NoError(t, err)
	assert.True(t, result.Inserted)
	assert.Equal(t, want.ID, result.Article.ID)
	require.Len(t, result.Article.Embedding, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepo_UpsertByURL_Resighted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	want := entity.Article{ID: 1, Title: "headline", URL: "https://example.com/a", Summary: "sum",
		SourceURL: "https://example.com/feed.xml", FirstSeenAt: now.Add(-time.Hour), LastSeenAt: now, HitCount: 2}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnRows(articleUpsertRow(want, false))

	repo := postgres.NewArticleRepo(db)
	result, err := repo.UpsertByURL(context.Background(), entity.Article{
		Title: want.Title, URL: want.URL, Summary: want.Summary, SourceURL: want.SourceURL,
		FirstSeenAt: want.FirstSeenAt, LastSeenAt: now,
	})
	require.NoError(t, err)
	assert.False(t, result.Inserted)
	assert.Equal(t, 2, result.Article.HitCount)
}

func TestArticleRepo_ListInWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM articles")).
		WithArgs(24).
		WillReturnRows(articleRow(entity.Article{
			ID: 1, Title: "t", URL: "https://example.com/a", Summary: "s", SourceURL: "https://example.com/feed.xml",
			FirstSeenAt: now, LastSeenAt: now, HitCount: 1, Embedding: []float32{0.5},
		}))

	want := entity.Article{
		ID: 1, Title: "t", URL: "https://example.com/a", Summary: "s", SourceURL: "https://example.com/feed.xml",
		FirstSeenAt: now, LastSeenAt: now, HitCount: 1, Embedding: []float32{0.5},
	}

	repo := postgres.NewArticleRepo(db)
	got, err := repo.ListInWindow(context.Background(), 24)
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("article mismatch (-want +got):\n%s", diff)
	}
}

func TestArticleRepo_DeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM articles WHERE last_seen_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := postgres.NewArticleRepo(db)
	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestArticleRepo_GetByIDs_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewArticleRepo(db)
	got, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestArticleRepo_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	repo := postgres.NewArticleRepo(db)
	_, err = repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestArticleRepo_ListTrending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY hit_count DESC")).
		WithArgs(48, 10).
		WillReturnRows(articleRow(entity.Article{
			ID: 7, Title: "trend", URL: "https://example.com/t", SourceURL: "https://example.com/feed.xml",
			FirstSeenAt: now, LastSeenAt: now, HitCount: 5,
		}))

	repo := postgres.NewArticleRepo(db)
	got, err := repo.ListTrending(context.Background(), 48, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].HitCount)
}

func TestArticleRepo_Stats_AggregatesWindowRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM articles")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT max(last_seen_at) FROM articles")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT first_seen_at, last_seen_at, source_url")).
		WithArgs(48).
		WillReturnRows(sqlmock.NewRows([]string{"first_seen_at", "last_seen_at", "source_url"}).
			AddRow(now.Add(-2*time.Hour), now.Add(-time.Hour), "https://example.com/feed.xml").
			AddRow(now.Add(-30*time.Minute), now.Add(-10*time.Minute), "https://example.com/feed.xml"))

	repo := postgres.NewArticleRepo(db)
	stats, err := repo.Stats(context.Background(), 48)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalArticles)
	require.NotNil(t, stats.NewestSeenAt)
	require.NotNil(t, stats.OldestInWindow)
	require.Len(t, stats.TopSources, 1)
	assert.Equal(t, int64(2), stats.TopSources[0].Count)
}
