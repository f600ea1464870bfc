package bolt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

var documentsBucket = []byte("documents")

// Store is a domain.DocumentStorage kept in a single BoltDB file. Documents
// are stored as encoded JSON in one bucket.
type Store struct {
	db   *bbolt.DB
	json docstore.Options
}

// Open opens (or creates) the database at path.
func Open(path string, jsonOpts docstore.Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("missing bolt db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(documentsBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bolt bucket: %w", err)
	}
	return &Store{db: db, json: jsonOpts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Read(ctx context.Context, keys []string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		for _, k := range keys {
			// Values are only valid for the life of the transaction.
			if v := b.Get([]byte(k)); v != nil {
				out[k] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt Read: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return out, nil
}

func (s *Store) Write(ctx context.Context, docs map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded := make(map[string][]byte, len(docs))
	for k, v := range docs {
		b, err := s.json.Bytes(v)
		if err != nil {
			return fmt.Errorf("bolt Write %q: %w: %w", k, domain.ErrMalformedDocument, err)
		}
		encoded[k] = b
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		for k, v := range encoded {
			if e := b.Put([]byte(k), v); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt Write: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		for _, k := range keys {
			if e := b.Delete([]byte(k)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys returns the stored keys with the given prefix, in byte order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(documentsBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt Keys: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return out, nil
}
