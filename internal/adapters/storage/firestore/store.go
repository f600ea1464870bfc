package firestore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

// DefaultCollection holds every chat document when no collection is configured.
const DefaultCollection = "documents"

// envelopeIDField names the original key inside enveloped documents.
const envelopeIDField = "id"

type Options struct {
	ProjectID  string
	Collection string
	// Envelope stores each document as {id, document: {...}} instead of its
	// bare fields. Readers accept both shapes either way.
	Envelope bool
}

type Store struct {
	client     *firestore.Client
	collection string
	envelope   bool
	json       docstore.Options
}

// NewStore creates a Firestore-backed domain.DocumentStorage.
// Uses the project passed (FARUM_GCP_PROJECT).
func NewStore(ctx context.Context, opts Options, jsonOpts docstore.Options) (*Store, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	collection := opts.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	return &Store{
		client:     client,
		collection: collection,
		envelope:   opts.Envelope,
		json:       jsonOpts,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// doc maps a storage key to a document reference. Keys may contain '/',
// which Firestore reserves as a path separator, so they are path-escaped.
func (s *Store) doc(key string) *firestore.DocumentRef {
	return s.col().Doc(docID(key))
}

func docID(key string) string {
	return url.PathEscape(key)
}

func keyFromID(id string) string {
	if k, err := url.PathUnescape(id); err == nil {
		return k
	}
	return id
}

// ─────────────────────────────────────────
// DocumentStorage implementation
// ─────────────────────────────────────────

// Read fetches each key. Snapshots are returned as native maps; enveloped
// documents are left wrapped for the codec to unwrap.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		snap, err := s.doc(k).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return nil, fmt.Errorf("firestore Read %q: %w: %w", k, domain.ErrStorageUnavailable, err)
		}
		if !snap.Exists() {
			continue
		}
		out[k] = snap.Data()
	}
	return out, nil
}

// Write replaces every document in a single batch.
func (s *Store) Write(ctx context.Context, docs map[string]any) error {
	if len(docs) == 0 {
		return nil
	}

	batch := s.client.Batch()
	for k, v := range docs {
		fields, err := s.json.Map(v)
		if err != nil {
			return fmt.Errorf("firestore Write %q: %w: %w", k, domain.ErrMalformedDocument, err)
		}
		if s.envelope {
			fields = map[string]any{
				envelopeIDField:        k,
				docstore.EnvelopeField: fields,
			}
		}
		batch.Set(s.doc(k), fields)
	}

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("firestore Write: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	batch := s.client.Batch()
	for _, k := range keys {
		batch.Delete(s.doc(k))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("firestore Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys lists the stored keys with the given prefix, in document id order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	iter := s.col().Select().Documents(ctx)
	defer iter.Stop()

	var out []string
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore Keys: %w: %w", domain.ErrStorageUnavailable, err)
		}
		if k := keyFromID(snap.Ref.ID); strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
