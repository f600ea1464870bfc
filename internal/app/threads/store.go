// Package threads persists, per user, the mapping from a thread to its
// serialized conversation state (and through it, the chat-history key), plus
// the per-user thread index that feeds thread pickers.
//
// Every key embeds the user id, which is the only isolation boundary: the
// storage engine itself knows nothing about ownership.
package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// threadDoc is the stored thread record.
type threadDoc struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	ThreadID    string          `json:"threadId"`
	ThreadData  json.RawMessage `json:"threadData"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// errForeignOwner marks a record found under the user's key whose stored
// owner is someone else. Callers see it as ErrThreadNotFound.
var errForeignOwner = fmt.Errorf("%w", domain.ErrThreadNotFound)

type Store struct {
	storage domain.DocumentStorage
	json    docstore.Options
	now     func() time.Time
}

// NewStore creates a thread store on top of a document storage.
func NewStore(storage domain.DocumentStorage, opts docstore.Options) *Store {
	return &Store{
		storage: storage,
		json:    opts,
		now:     time.Now,
	}
}

// CreateIndexEntryOnce prepends threadID to the user's thread index unless it
// is already there. It must run before the first model turn is sent so the
// thread shows up in the picker even if that turn fails.
func (s *Store) CreateIndexEntryOnce(
	ctx context.Context,
	userID domain.UserID,
	threadID domain.ThreadID,
	title string,
) error {
	key, err := IndexKey(userID)
	if err != nil {
		return err
	}
	if threadID == "" {
		return domain.ErrMissingThreadID
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"thread_id", threadID,
	)

	entries, shape, err := s.readIndex(ctx, key)
	if err != nil {
		log.Error("failed to read thread index", "error", err)
		return err
	}
	if containsThread(entries, threadID) {
		log.Debug("thread already indexed")
		return nil
	}

	if title == "" {
		title = string(threadID)
	}
	entry := domain.ThreadSummary{
		ThreadID:  threadID,
		Title:     TruncateTitle(title),
		CreatedAt: s.now().UTC(),
	}
	entries = append([]domain.ThreadSummary{entry}, entries...)

	body, err := s.json.Marshal(indexDoc{
		ID:      key,
		UserID:  string(userID),
		Threads: entries,
	})
	if err != nil {
		return fmt.Errorf("encode thread index: %w", err)
	}
	if err := s.storage.Write(ctx, map[string]any{key: body}); err != nil {
		log.Error("failed to write thread index", "error", err)
		return fmt.Errorf("write thread index %s: %w", key, err)
	}

	log.Info("thread indexed", "index_shape", shape.String(), "threads", len(entries))
	return nil
}

// ListThreads returns up to limit index entries in stored order (most recent
// first). limit <= 0 returns all. A user with no index gets an empty list.
func (s *Store) ListThreads(ctx context.Context, userID domain.UserID, limit int) ([]domain.ThreadSummary, error) {
	key, err := IndexKey(userID)
	if err != nil {
		return nil, err
	}

	entries, _, err := s.readIndex(ctx, key)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list threads",
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.ThreadSummary, len(entries))
	copy(out, entries)
	return out, nil
}

// SaveThreadPointer writes the user's thread record with the serialized
// conversation state. It must only be called once a turn has produced a
// history key; a state without one is rejected with ErrOrderingViolation.
func (s *Store) SaveThreadPointer(
	ctx context.Context,
	userID domain.UserID,
	threadID domain.ThreadID,
	state json.RawMessage,
) error {
	key, err := ThreadKey(userID, threadID)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(state) || !gjson.ParseBytes(state).IsObject() {
		return fmt.Errorf("%w: thread state must be a JSON object", domain.ErrMalformedDocument)
	}
	if HistoryKeyFromState(state) == "" {
		return fmt.Errorf("%w: thread %s saved before any turn completed", domain.ErrOrderingViolation, threadID)
	}

	body, err := s.json.Marshal(threadDoc{
		ID:          key,
		UserID:      string(userID),
		ThreadID:    string(threadID),
		ThreadData:  state,
		LastUpdated: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode thread %s: %w", key, err)
	}

	if err := s.storage.Write(ctx, map[string]any{key: body}); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to save thread pointer",
			"user_id", userID,
			"thread_id", threadID,
			"error", err,
		)
		return fmt.Errorf("write thread %s: %w", key, err)
	}
	return nil
}

// LoadThreadPointer reads the user's thread record. It returns
// ErrThreadNotFound when no record exists and ErrMalformedDocument when one
// exists but cannot be read. HistoryKey is empty when the state has none.
func (s *Store) LoadThreadPointer(
	ctx context.Context,
	userID domain.UserID,
	threadID domain.ThreadID,
) (*domain.ThreadPointer, error) {
	key, err := ThreadKey(userID, threadID)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"thread_id", threadID,
	)

	raw, err := s.storage.Read(ctx, []string{key})
	if err != nil {
		log.Error("failed to read thread pointer", "error", err)
		return nil, fmt.Errorf("read thread %s: %w", key, err)
	}

	value, present := raw[key]
	if !present {
		return nil, domain.ErrThreadNotFound
	}
	doc, ok := s.json.Normalize(value)
	if !ok {
		log.Warn("unrecognized thread document shape")
		return nil, fmt.Errorf("%w: thread %s", domain.ErrMalformedDocument, key)
	}
	if owner := doc.String("userId"); owner != "" && owner != string(userID) {
		log.Warn("thread document owned by another user", "owner", owner)
		return nil, errForeignOwner
	}

	state := threadState(doc)
	ptr := &domain.ThreadPointer{
		UserID:     userID,
		ThreadID:   threadID,
		State:      state,
		HistoryKey: HistoryKeyFromState(state),
	}
	if ptr.HistoryKey == "" {
		log.Warn("thread document has no history key")
	}
	return ptr, nil
}

// DeleteThread removes the thread record and its index entry and returns the
// history key the record pointed to, so the caller can drop the history too.
func (s *Store) DeleteThread(
	ctx context.Context,
	userID domain.UserID,
	threadID domain.ThreadID,
) (domain.HistoryKey, error) {
	key, err := ThreadKey(userID, threadID)
	if err != nil {
		return "", err
	}
	indexKey, _ := IndexKey(userID)

	var historyKey domain.HistoryKey
	ptr, err := s.LoadThreadPointer(ctx, userID, threadID)
	switch {
	case err == nil:
		historyKey = ptr.HistoryKey
	case errors.Is(err, errForeignOwner):
		return "", domain.ErrThreadNotFound
	case errors.Is(err, domain.ErrThreadNotFound), errors.Is(err, domain.ErrMalformedDocument):
	default:
		return "", err
	}

	entries, _, err := s.readIndex(ctx, indexKey)
	if err != nil {
		return "", err
	}
	if containsThread(entries, threadID) {
		kept := make([]domain.ThreadSummary, 0, len(entries)-1)
		for _, e := range entries {
			if e.ThreadID != threadID {
				kept = append(kept, e)
			}
		}
		body, err := s.json.Marshal(indexDoc{ID: indexKey, UserID: string(userID), Threads: kept})
		if err != nil {
			return "", fmt.Errorf("encode thread index: %w", err)
		}
		if err := s.storage.Write(ctx, map[string]any{indexKey: body}); err != nil {
			return "", fmt.Errorf("write thread index %s: %w", indexKey, err)
		}
	}

	if err := s.storage.Delete(ctx, []string{key}); err != nil {
		return "", fmt.Errorf("delete thread %s: %w", key, err)
	}

	observability.LoggerFromContext(ctx).Info("thread deleted",
		"user_id", userID,
		"thread_id", threadID,
		"history_key", historyKey,
	)
	return historyKey, nil
}

// readIndex returns the normalized index entries. A missing or malformed
// index yields no entries and no error.
func (s *Store) readIndex(ctx context.Context, key string) ([]domain.ThreadSummary, indexShape, error) {
	raw, err := s.storage.Read(ctx, []string{key})
	if err != nil {
		return nil, indexMalformed, fmt.Errorf("read thread index %s: %w", key, err)
	}

	value, present := raw[key]
	if !present {
		return nil, indexAbsent, nil
	}
	doc, ok := s.json.Normalize(value)
	if !ok {
		observability.LoggerFromContext(ctx).Warn("unrecognized thread index shape", "key", key)
		return nil, indexMalformed, nil
	}

	entries, shape := decodeIndex(doc, s.now().UTC())
	if shape == indexMalformed {
		observability.LoggerFromContext(ctx).Warn("thread index has neither threads nor threadIds", "key", key)
	}
	return entries, shape, nil
}

// threadState returns the serialized state stored under threadData. Some
// serializers store it as a JSON string rather than an object.
func threadState(doc docstore.Document) json.RawMessage {
	r := doc.Get("threadData")
	switch {
	case r.IsObject():
		return json.RawMessage(r.Raw)
	case r.Type == gjson.String && gjson.Valid(r.Str) && gjson.Parse(r.Str).IsObject():
		return json.RawMessage(r.Str)
	default:
		return nil
	}
}
