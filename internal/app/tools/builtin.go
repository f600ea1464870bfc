package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

// ThreadLister is the part of the thread store the list_threads tool needs.
type ThreadLister interface {
	ListThreads(ctx context.Context, userID domain.UserID, limit int) ([]domain.ThreadSummary, error)
}

// ListThreadsTool lets the model look at the caller's own previous threads.
type ListThreadsTool struct {
	threads ThreadLister
}

func NewListThreadsTool(threads ThreadLister) *ListThreadsTool {
	return &ListThreadsTool{threads: threads}
}

func (t *ListThreadsTool) Name() string {
	return "list_threads"
}

func (t *ListThreadsTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        t.Name(),
		Description: "Lists the titles of the user's most recent conversations, newest first.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of threads to return (default 10).",
				},
			},
		},
	}
}

// Enabled hides the tool when the turn has no user to scope the listing to.
func (t *ListThreadsTool) Enabled(_ context.Context, tctx ToolContext) bool {
	return tctx.UserID != ""
}

// Call expects an input with this shape:
//
//	{ "limit": 5 }
//
// UserID comes in ToolContext, never from the model.
func (t *ListThreadsTool) Call(
	ctx context.Context,
	tctx ToolContext,
	input map[string]any,
) (map[string]any, error) {
	if tctx.UserID == "" {
		return nil, fmt.Errorf("list_threads: missing UserID in ToolContext")
	}

	limit := getInt(input, "limit", 10)
	threads, err := t.threads.ListThreads(ctx, tctx.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list_threads: %w", err)
	}

	items := make([]any, 0, len(threads))
	for _, th := range threads {
		items = append(items, map[string]any{
			"thread_id":  string(th.ThreadID),
			"title":      th.Title,
			"created_at": th.CreatedAt.Format(time.RFC3339),
			"current":    th.ThreadID == tctx.ThreadID,
		})
	}
	return map[string]any{
		"threads": items,
		"count":   len(items),
	}, nil
}

// CurrentTimeTool reports the current time.
type CurrentTimeTool struct {
	now func() time.Time
}

func NewCurrentTimeTool() *CurrentTimeTool {
	return &CurrentTimeTool{now: time.Now}
}

func (t *CurrentTimeTool) Name() string {
	return "current_time"
}

func (t *CurrentTimeTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        t.Name(),
		Description: "Returns the current date and time in RFC 3339 format.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA time zone name, e.g. Europe/Madrid. Defaults to UTC.",
				},
			},
		},
	}
}

func (t *CurrentTimeTool) Call(_ context.Context, _ ToolContext, input map[string]any) (map[string]any, error) {
	loc := time.UTC
	if tz := getString(input, "timezone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("current_time: unknown timezone %q", tz)
		}
		loc = l
	}
	return map[string]any{
		"time": t.now().In(loc).Format(time.RFC3339),
	}, nil
}

// --- internal helpers --- //

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]any, key string, def int) int {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}
