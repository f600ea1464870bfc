package instrumented

import (
	"context"
	"errors"
	"time"

	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// Storage decorates a domain.DocumentStorage with latency/error metrics and
// debug logs. Errors and results pass through unchanged.
type Storage struct {
	next    domain.DocumentStorage
	backend string
}

func Wrap(next domain.DocumentStorage, backend string) *Storage {
	return &Storage{next: next, backend: backend}
}

func (s *Storage) Read(ctx context.Context, keys []string) (map[string]any, error) {
	start := time.Now()
	out, err := s.next.Read(ctx, keys)
	s.observe(ctx, "read", start, len(out), err)
	return out, err
}

func (s *Storage) Write(ctx context.Context, docs map[string]any) error {
	start := time.Now()
	err := s.next.Write(ctx, docs)
	s.observe(ctx, "write", start, len(docs), err)
	return err
}

func (s *Storage) Delete(ctx context.Context, keys []string) error {
	start := time.Now()
	err := s.next.Delete(ctx, keys)
	s.observe(ctx, "delete", start, len(keys), err)
	return err
}

// Keys forwards to the wrapped backend when it can list keys.
func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	lister, ok := s.next.(domain.KeyLister)
	if !ok {
		return nil, errors.New("storage backend " + s.backend + " cannot list keys")
	}
	start := time.Now()
	out, err := lister.Keys(ctx, prefix)
	s.observe(ctx, "keys", start, len(out), err)
	return out, err
}

// Unwrap returns the decorated storage.
func (s *Storage) Unwrap() domain.DocumentStorage {
	return s.next
}

func (s *Storage) observe(ctx context.Context, op string, start time.Time, docs int, err error) {
	elapsed := time.Since(start)
	observability.StorageOpDuration.WithLabelValues(s.backend, op).Observe(float64(elapsed.Microseconds()) / 1000)

	log := observability.LoggerFromContext(ctx)
	if err != nil {
		observability.StorageOpErrors.WithLabelValues(s.backend, op).Inc()
		log.Warn("storage call failed", "backend", s.backend, "op", op, "error", err)
		return
	}
	observability.StorageDocuments.WithLabelValues(s.backend, op).Add(float64(docs))
	log.Debug("storage call", "backend", s.backend, "op", op, "docs", docs, "elapsed_ms", elapsed.Milliseconds())
}
