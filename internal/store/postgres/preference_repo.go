package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/cgast/embird/internal/domain/entity"
)

// PreferenceRepo is the preference-vector surface's persistence layer (C16).
type PreferenceRepo struct {
	db *sql.DB
}

func NewPreferenceRepo(db *sql.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

func (r *PreferenceRepo) Create(ctx context.Context, pref entity.PreferenceVector) (entity.PreferenceVector, error) {
	var embeddingArg interface{}
	if pref.Embedding != nil {
		embeddingArg = pgvector.NewVector(pref.Embedding)
	}

	const query = `
		INSERT INTO preference_vectors (title, description, embedding)
		VALUES ($1, $2, $3)
		RETURNING id, title, description, embedding, created_at, updated_at`

	row := r.db.QueryRowContext(ctx, query, pref.Title, pref.Description, embeddingArg)
	return scanPreference(row)
}

func (r *PreferenceRepo) Update(ctx context.Context, pref entity.PreferenceVector) (entity.PreferenceVector, error) {
	var embeddingArg interface{}
	if pref.Embedding != nil {
		embeddingArg = pgvector.NewVector(pref.Embedding)
	}

	const query = `
		UPDATE preference_vectors
		SET title = $2, description = $3, embedding = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, title, description, embedding, created_at, updated_at`

	row := r.db.QueryRowContext(ctx, query, pref.ID, pref.Title, pref.Description, embeddingArg)
	return scanPreference(row)
}

func (r *PreferenceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM preference_vectors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete preference vector: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: delete preference vector: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *PreferenceRepo) Get(ctx context.Context, id int64) (entity.PreferenceVector, error) {
	const query = `
		SELECT id, title, description, embedding, created_at, updated_at
		FROM preference_vectors WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	pref, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.PreferenceVector{}, entity.ErrNotFound
	}
	return pref, err
}

func (r *PreferenceRepo) List(ctx context.Context) ([]entity.PreferenceVector, error) {
	const query = `
		SELECT id, title, description, embedding, created_at, updated_at
		FROM preference_vectors ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list preference vectors: %w", err)
	}
	defer rows.Close()

	var prefs []entity.PreferenceVector
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan preference vector: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func scanPreference(s rowScanner) (entity.PreferenceVector, error) {
	var p entity.PreferenceVector
	var vec pgvector.Vector

	err := s.Scan(&p.ID, &p.Title, &p.Description, &vec, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return entity.PreferenceVector{}, err
	}
	if vec.Slice() != nil {
		p.Embedding = entity.Embedding(vec.Slice())
	}
	return p, nil
}
