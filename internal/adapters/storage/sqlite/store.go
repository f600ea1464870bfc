package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store is a domain.DocumentStorage in a single SQLite table.
type Store struct {
	db   *sql.DB
	json docstore.Options
	now  func() time.Time
}

func Open(path string, jsonOpts docstore.Options) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if p != MemoryPath {
		p = filepath.Clean(p)
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// One connection: every :memory: connection is its own database, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &Store{db: db, json: jsonOpts, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Read(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	q := `SELECT key, body FROM documents WHERE key IN (` + placeholders(len(keys)) + `)`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite Read: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key  string
			body []byte
		)
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("sqlite Read scan: %w: %w", domain.ErrStorageUnavailable, err)
		}
		out[key] = body
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite Read: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return out, nil
}

// Write upserts every document in one transaction.
func (s *Store) Write(ctx context.Context, docs map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(docs))
	for k, v := range docs {
		b, err := s.json.Bytes(v)
		if err != nil {
			return fmt.Errorf("sqlite Write %q: %w: %w", k, domain.ErrMalformedDocument, err)
		}
		encoded[k] = b
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite Write: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UnixMilli()
	for k, b := range encoded {
		_, err := tx.ExecContext(ctx, `
INSERT INTO documents(key, body, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`, k, b, now)
		if err != nil {
			return fmt.Errorf("sqlite Write %q: %w: %w", k, domain.ErrStorageUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite Write commit: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key IN (`+placeholders(len(keys))+`)`, args...)
	if err != nil {
		return fmt.Errorf("sqlite Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys returns the stored keys with the given prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM documents WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite Keys: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite Keys scan: %w: %w", domain.ErrStorageUnavailable, err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
