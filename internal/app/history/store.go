// Package history persists the ordered message list of one conversation
// under its history key.
//
// Every turn re-reads the full list, appends, and rewrites the whole
// document. There is one writer per thread; concurrent turns on the same
// thread may lose messages.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// KeyPrefix prefixes every minted history key.
const KeyPrefix = "chat-history-"

// NewKey mints a fresh, globally unique history key.
func NewKey() domain.HistoryKey {
	return domain.HistoryKey(KeyPrefix + uuid.NewString())
}

// historyDoc is the stored chat-history document.
type historyDoc struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Messages    []domain.Message `json:"messages"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

type Store struct {
	storage domain.DocumentStorage
	json    docstore.Options
	now     func() time.Time
	newKey  func() domain.HistoryKey
}

// NewStore creates a chat history store on top of a document storage.
// opts is the JSON configuration shared with display consumers.
func NewStore(storage domain.DocumentStorage, opts docstore.Options) *Store {
	return &Store{
		storage: storage,
		json:    opts,
		now:     time.Now,
		newKey:  NewKey,
	}
}

// LoadMessages returns the messages stored under key, oldest first.
//
// An empty key returns immediately without touching storage: that is the
// normal state of a thread whose first turn never completed. Missing or
// malformed documents and storage failures all yield an empty list, history is
// best-effort context and must not abort the caller's turn.
func (s *Store) LoadMessages(ctx context.Context, key domain.HistoryKey) []domain.Message {
	if key == "" {
		return []domain.Message{}
	}

	msgs, err := s.load(ctx, key)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to load chat history",
			"history_key", key,
			"error", err,
		)
		return []domain.Message{}
	}
	return msgs
}

// Transcript returns only the messages a display consumer can render.
func (s *Store) Transcript(ctx context.Context, key domain.HistoryKey) []domain.Message {
	all := s.LoadMessages(ctx, key)
	out := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if m.IsRenderable() {
			out = append(out, m)
		}
	}
	return out
}

// AppendTurn appends newMessages, in the order given, to the history stored
// under key and returns the key. An empty key mints a new one.
//
// Callers must not invoke AppendTurn for a turn whose model call failed.
// Unlike LoadMessages, a storage read failure is returned and nothing is
// written. A stored document that is present but malformed is treated as
// empty and replaced by the appended turn.
func (s *Store) AppendTurn(
	ctx context.Context,
	key domain.HistoryKey,
	userID domain.UserID,
	newMessages []domain.Message,
) (domain.HistoryKey, error) {
	if userID == "" {
		return "", domain.ErrMissingUserID
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"history_key", key,
	)

	var existing []domain.Message
	if key == "" {
		key = s.newKey()
		log = log.With("history_key", key)
		log.Info("minted chat history key")
	} else {
		msgs, err := s.load(ctx, key)
		if err != nil {
			log.Error("failed to read chat history before append", "error", err)
			return "", err
		}
		existing = msgs
	}

	now := s.now().UTC()
	all := make([]domain.Message, 0, len(existing)+len(newMessages))
	all = append(all, existing...)
	for _, m := range newMessages {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		all = append(all, m)
	}

	body, err := s.json.Marshal(historyDoc{
		ID:          string(key),
		UserID:      string(userID),
		Messages:    all,
		LastUpdated: now,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat history %s: %w", key, err)
	}

	if err := s.storage.Write(ctx, map[string]any{string(key): body}); err != nil {
		log.Error("failed to write chat history", "error", err)
		return "", fmt.Errorf("write chat history %s: %w", key, err)
	}

	log.Debug("chat history appended",
		"appended", len(newMessages),
		"total", len(all),
	)
	return key, nil
}

// Delete removes the history document. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key domain.HistoryKey) error {
	if key == "" {
		return nil
	}
	if err := s.storage.Delete(ctx, []string{string(key)}); err != nil {
		return fmt.Errorf("delete chat history %s: %w", key, err)
	}
	return nil
}

// load reads and decodes the history document. A missing document is not an
// error and yields nil.
func (s *Store) load(ctx context.Context, key domain.HistoryKey) ([]domain.Message, error) {
	raw, err := s.storage.Read(ctx, []string{string(key)})
	if err != nil {
		return nil, fmt.Errorf("read chat history %s: %w", key, err)
	}

	log := observability.LoggerFromContext(ctx).With("history_key", key)

	value, present := raw[string(key)]
	doc, ok := s.json.Normalize(value)
	if !ok {
		if present {
			log.Warn("unrecognized chat history document shape")
		}
		return nil, nil
	}

	field := doc.Get("messages")
	if !field.Exists() || field.Type == gjson.Null {
		log.Warn("chat history document has no messages field")
		return nil, nil
	}
	if !field.IsArray() {
		log.Warn("chat history messages field is not a list", "type", field.Type.String())
		return nil, nil
	}

	items := field.Array()
	out := make([]domain.Message, 0, len(items))
	for i, item := range items {
		var m domain.Message
		if err := s.json.Unmarshal([]byte(item.Raw), &m); err != nil {
			log.Warn("skipping malformed chat history message", "index", i, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
