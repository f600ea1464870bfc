package redis

import (
	"context"
	"fmt"

	r "gopkg.in/redis.v5"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

// DefaultPrefix namespaces chat documents inside a shared redis database.
const DefaultPrefix = "__farum_chat__"

// Store is a domain.DocumentStorage backed by redis string values.
// The redis.v5 client has no context support, so ctx is only checked before
// each call.
type Store struct {
	client *r.Client
	prefix string
	json   docstore.Options
}

// New connects to the redis server at url (redis://[:password@]host:port/db).
func New(url, prefix string, jsonOpts docstore.Options) (*Store, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := r.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return NewWithClient(client, prefix, jsonOpts), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *r.Client, prefix string, jsonOpts docstore.Options) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, json: jsonOpts}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Read(ctx context.Context, keys []string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(s.prefixed(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis Read: %w: %w", domain.ErrStorageUnavailable, err)
	}
	for i, v := range vals {
		// MGet yields nil for missing keys.
		if str, ok := v.(string); ok {
			out[keys[i]] = []byte(str)
		}
	}
	return out, nil
}

// Write stores all documents with one MSET, which redis applies atomically.
func (s *Store) Write(ctx context.Context, docs map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	pairs := make([]interface{}, 0, 2*len(docs))
	for k, v := range docs {
		b, err := s.json.Bytes(v)
		if err != nil {
			return fmt.Errorf("redis Write %q: %w: %w", k, domain.ErrMalformedDocument, err)
		}
		pairs = append(pairs, s.prefix+k, b)
	}
	if err := s.client.MSet(pairs...).Err(); err != nil {
		return fmt.Errorf("redis Write: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(s.prefixed(keys)...).Err(); err != nil {
		return fmt.Errorf("redis Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys returns the stored keys with the given prefix. It uses KEYS and is
// meant for operator tooling, not request paths.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := s.client.Keys(s.prefix + prefix + "*").Result()
	if err != nil {
		return nil, fmt.Errorf("redis Keys: %w: %w", domain.ErrStorageUnavailable, err)
	}
	out := make([]string, 0, len(found))
	for _, k := range found {
		out = append(out, k[len(s.prefix):])
	}
	return out, nil
}

func (s *Store) prefixed(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.prefix + k
	}
	return out
}
