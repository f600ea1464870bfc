package threads

import (
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

// MaxTitleLength is the number of runes kept from a thread title.
const MaxTitleLength = 80

// indexShape is the stored variant of a thread index document.
type indexShape int

const (
	indexMalformed indexShape = iota
	// indexCurrent holds {ThreadId, Title, CreatedAt} entries under "threads".
	indexCurrent
	// indexLegacy holds bare thread ids under "threadIds".
	indexLegacy
	// indexAbsent means no index document is stored yet.
	indexAbsent
)

func (s indexShape) String() string {
	switch s {
	case indexCurrent:
		return "current"
	case indexLegacy:
		return "legacy"
	case indexAbsent:
		return "absent"
	default:
		return "malformed"
	}
}

// indexDoc is the stored thread index, always written in the current shape.
type indexDoc struct {
	ID      string                 `json:"id"`
	UserID  string                 `json:"userId"`
	Threads []domain.ThreadSummary `json:"threads"`
}

// decodeIndex reads the entries of a normalized index document. Legacy bare
// ids are upgraded with the id as title and now as creation time, the original
// creation time is not recoverable. Duplicate ids keep their first occurrence.
func decodeIndex(doc docstore.Document, now time.Time) ([]domain.ThreadSummary, indexShape) {
	var (
		entries []domain.ThreadSummary
		shape   indexShape
	)

	switch {
	case doc.Get("threads").IsArray():
		shape = indexCurrent
		for _, item := range doc.Get("threads").Array() {
			if e, ok := decodeEntry(item, now); ok {
				entries = append(entries, e)
			}
		}
	case doc.Get("threadIds").IsArray():
		shape = indexLegacy
		for _, item := range doc.Get("threadIds").Array() {
			if item.Type == gjson.String && item.Str != "" {
				entries = append(entries, legacyEntry(item.Str, now))
			}
		}
	default:
		return nil, indexMalformed
	}

	return dedupe(entries), shape
}

func decodeEntry(item gjson.Result, now time.Time) (domain.ThreadSummary, bool) {
	if item.Type == gjson.String {
		if item.Str == "" {
			return domain.ThreadSummary{}, false
		}
		return legacyEntry(item.Str, now), true
	}
	if !item.IsObject() {
		return domain.ThreadSummary{}, false
	}

	id := firstString(item, "ThreadId", "threadId")
	if id == "" {
		return domain.ThreadSummary{}, false
	}
	title := firstString(item, "Title", "title")
	if title == "" {
		title = id
	}

	createdAt := now
	for _, f := range []string{"CreatedAt", "createdAt"} {
		if r := item.Get(f); r.Type == gjson.String {
			if t, err := time.Parse(time.RFC3339Nano, r.Str); err == nil {
				createdAt = t
			}
			break
		}
	}

	return domain.ThreadSummary{
		ThreadID:  domain.ThreadID(id),
		Title:     title,
		CreatedAt: createdAt,
	}, true
}

func legacyEntry(id string, now time.Time) domain.ThreadSummary {
	return domain.ThreadSummary{
		ThreadID:  domain.ThreadID(id),
		Title:     id,
		CreatedAt: now,
	}
}

func firstString(item gjson.Result, fields ...string) string {
	for _, f := range fields {
		if r := item.Get(f); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func dedupe(entries []domain.ThreadSummary) []domain.ThreadSummary {
	seen := make(map[domain.ThreadID]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, dup := seen[e.ThreadID]; dup {
			continue
		}
		seen[e.ThreadID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func containsThread(entries []domain.ThreadSummary, id domain.ThreadID) bool {
	for _, e := range entries {
		if e.ThreadID == id {
			return true
		}
	}
	return false
}

// TruncateTitle shortens title to MaxTitleLength runes for display.
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxTitleLength-1]) + "…"
}
