package document

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// PostgresStore keeps documents as BYTEA rows. It is meant for small
// deployments that already run postgres for history.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
    id SERIAL PRIMARY KEY,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(owner, name)
);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, owner, name string, content []byte) error {
	owner, name, err := normalize(owner, name)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (owner, name, content, size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner, name)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, owner, name, content, int64(len(content)), time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, owner, name string) ([]byte, error) {
	owner, name, err := normalize(owner, name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE owner=$1 AND name=$2`, owner, name).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return content, err
}

func (s *PostgresStore) List(ctx context.Context, owner string) ([]string, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM documents WHERE owner=$1 ORDER BY name`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// GetURL is unsupported; content is stored inline.
func (s *PostgresStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}
