// Package postgres is the durable store (C3), URL registry (C4), and
// preference-vector store (C16) on top of Postgres + pgvector.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ConnectionConfig controls the pool on top of the pgx/v5 stdlib driver.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

func connectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOpenConns = n
		}
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIdleConns = n
		}
	}
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnMaxLifetime = d
		}
	}
	if v := os.Getenv("DB_CONN_MAX_IDLE_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnMaxIdleTime = d
		}
	}
	return cfg
}

// Open establishes a connection pool against DATABASE_URL and verifies
// connectivity. Callers are responsible for running Migrate before use.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	cfg := connectionConfigFromEnv()
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns))

	return db, nil
}

// Migrate creates every table and index this store needs, idempotently.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS sources (
			id                SERIAL PRIMARY KEY,
			url               TEXT NOT NULL UNIQUE,
			type              VARCHAR(20) NOT NULL,
			last_crawled_at   TIMESTAMPTZ,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_created_at ON sources(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS articles (
			id             SERIAL PRIMARY KEY,
			title          TEXT NOT NULL,
			url            TEXT NOT NULL UNIQUE,
			summary        TEXT NOT NULL,
			source_url     TEXT NOT NULL,
			first_seen_at  TIMESTAMPTZ NOT NULL,
			last_seen_at   TIMESTAMPTZ NOT NULL,
			hit_count      INT NOT NULL DEFAULT 1,
			embedding      vector(1024),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_last_seen_at ON articles(last_seen_at)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_hit_count_last_seen ON articles(hit_count DESC, last_seen_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_source_url ON articles(source_url)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_embedding ON articles USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,

		`CREATE TABLE IF NOT EXISTS preference_vectors (
			id          SERIAL PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			embedding   vector(1024),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS news_clusters (
			hours_window   INT NOT NULL,
			min_similarity DOUBLE PRECISION NOT NULL,
			clusters       JSONB NOT NULL,
			refreshed_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (hours_window, min_similarity)
		)`,

		`CREATE TABLE IF NOT EXISTS news_umap (
			hours_window   INT NOT NULL,
			min_similarity DOUBLE PRECISION NOT NULL,
			points         JSONB NOT NULL,
			refreshed_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (hours_window, min_similarity)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %s: %w", firstLine(stmt), err)
		}
	}

	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
