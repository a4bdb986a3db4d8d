package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/docqa/internal/core"
)

// PgVectorStore keeps entries in Postgres with the pgvector extension. It
// shares the record store's connection pool and does not close it.
type PgVectorStore struct {
	db        *sql.DB
	dimension int
}

func NewPgVectorStore(ctx context.Context, db *sql.DB, dimension int) (*PgVectorStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	s := &PgVectorStore{db: db, dimension: dimension}
	if err := s.ensureTables(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector tables: %w", err)
	}
	return s, nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS document_entries (
  id         TEXT PRIMARY KEY,
  scope_id   TEXT NOT NULL,
  seq        INT NOT NULL,
  text       TEXT NOT NULL,
  embedding  vector(%d) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS document_entries_scope_idx ON document_entries (scope_id);
`, s.dimension)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Replace deletes and rewrites the scope in one transaction.
func (s *PgVectorStore) Replace(ctx context.Context, scope core.ScopeID, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_entries WHERE scope_id = $1`, scope.String()); err != nil {
		return fmt.Errorf("clear scope: %w", err)
	}

	const q = `
		INSERT INTO document_entries (id, scope_id, seq, text, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if len(e.Embedding) != s.dimension {
			return fmt.Errorf("%w: entry %s has %d dimensions", core.ErrDimensionMismatch, e.ID, len(e.Embedding))
		}
		if _, err := stmt.ExecContext(ctx, e.ID, scope.String(), e.Seq, e.Text, pgvector.NewVector(e.Embedding)); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PgVectorStore) Query(ctx context.Context, scope core.ScopeID, vec []float32, k int) ([]Hit, error) {
	const q = `
		SELECT id, seq, text, 1 - (embedding <=> $2) AS score
		FROM document_entries
		WHERE scope_id = $1
		ORDER BY embedding <=> $2, seq ASC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, scope.String(), pgvector.NewVector(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.EntryID, &h.Seq, &h.Text, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) DeleteScope(ctx context.Context, scope core.ScopeID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_entries WHERE scope_id = $1`, scope.String())
	return err
}

func (s *PgVectorStore) Count(ctx context.Context, scope core.ScopeID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM document_entries WHERE scope_id = $1`, scope.String()).Scan(&n)
	return n, err
}

func (s *PgVectorStore) Close() error { return nil }
