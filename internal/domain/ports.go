package domain

import "context"

// DocumentStorage is the generic key-addressed document store.
//
// Read returns only the keys that exist; missing keys are absent from the
// result map and are never an error. Raw values may be encoded documents
// ([]byte, json.RawMessage, string) or pre-decoded map[string]any.
// Write has upsert semantics with whole-document replace per key.
type DocumentStorage interface {
	Read(ctx context.Context, keys []string) (map[string]any, error)
	Write(ctx context.Context, docs map[string]any) error
	Delete(ctx context.Context, keys []string) error
}

// ToolSpec describes a tool offered to the model for one turn.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the tool input.
	Parameters map[string]any
}

// ModelRequest is one call to the model: prior messages, the new input
// messages of the current turn and the tools available for it.
type ModelRequest struct {
	UserID   UserID
	ThreadID ThreadID
	History  []Message
	Input    []Message
	Tools    []ToolSpec
}

// ModelResponse carries the assistant message(s) of one model call.
type ModelResponse struct {
	Messages []Message
}

// ModelClient defines how the core application interacts with an LLM service.
// A failed call returns an error, never a partial response.
type ModelClient interface {
	Complete(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// KeyLister is implemented by storage backends that can enumerate their keys.
// It is used by operator tooling only; the core never lists keys.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
