package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool       *pgxpool.Pool
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store not initialized")
	}
	s.schemaOnce.Do(func() {
		statements := []string{
			`CREATE TABLE IF NOT EXISTS conversions (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL,
    provider TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error_kind TEXT NOT NULL DEFAULT '',
    filename TEXT NOT NULL DEFAULT '',
    bytes INTEGER NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);`,
			`CREATE INDEX IF NOT EXISTS idx_conversions_username ON conversions (username, created_at DESC);`,
		}
		for _, stmt := range statements {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				s.schemaErr = err
				return
			}
		}
	})
	return s.schemaErr
}

func (s *PostgresStore) Record(ctx context.Context, rec Record) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	rec = prepare(rec)
	_, err := s.pool.Exec(ctx, `
INSERT INTO conversions (id, username, mode, provider, status, error_kind, filename, bytes, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, rec.ID, rec.Username, rec.Mode, rec.Provider, string(rec.Status), rec.ErrorKind,
		rec.Filename, rec.Bytes, rec.Duration.Milliseconds(), rec.CreatedAt)
	return err
}

func (s *PostgresStore) Recent(ctx context.Context, username string, limit int) ([]Record, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	const cols = `id, username, mode, provider, status, error_kind, filename, bytes, duration_ms, created_at`
	if username == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+cols+` FROM conversions ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+cols+` FROM conversions WHERE username=$1 ORDER BY created_at DESC LIMIT $2`, username, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec        Record
			status     string
			durationMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Mode, &rec.Provider, &status,
			&rec.ErrorKind, &rec.Filename, &rec.Bytes, &durationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
