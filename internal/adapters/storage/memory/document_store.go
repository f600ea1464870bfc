package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

// DocumentStore is a simple in-memory implementation of domain.DocumentStorage.
// It is NOT persistent and is only suitable for development / local mode and tests.
//
// Encoded documents are copied on write and on read; pre-decoded maps are kept
// and returned as they were written, the way document backends hand back
// native maps.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]any

	reads   atomic.Int64
	writes  atomic.Int64
	deletes atomic.Int64
}

// NewDocumentStore creates an empty in-memory store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]any),
	}
}

func (s *DocumentStore) Read(ctx context.Context, keys []string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory Read: %w: %w", domain.ErrStorageUnavailable, err)
	}
	s.reads.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.docs[k]; ok {
			out[k] = copyValue(v)
		}
	}
	return out, nil
}

func (s *DocumentStore) Write(ctx context.Context, docs map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory Write: %w: %w", domain.ErrStorageUnavailable, err)
	}
	s.writes.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range docs {
		s.docs[k] = copyValue(v)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}
	s.deletes.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.docs, k)
	}
	return nil
}

// Keys returns the stored keys with the given prefix, sorted.
func (s *DocumentStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory Keys: %w: %w", domain.ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadCalls returns how many Read calls reached the store.
func (s *DocumentStore) ReadCalls() int64 { return s.reads.Load() }

// WriteCalls returns how many Write calls reached the store.
func (s *DocumentStore) WriteCalls() int64 { return s.writes.Load() }

// DeleteCalls returns how many Delete calls reached the store.
func (s *DocumentStore) DeleteCalls() int64 { return s.deletes.Load() }

func copyValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...)
	case json.RawMessage:
		return append(json.RawMessage(nil), t...)
	default:
		return v
	}
}
