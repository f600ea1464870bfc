package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

// ToolContext brings metadata of the call to the tool
type ToolContext struct {
	UserID    domain.UserID
	ThreadID  domain.ThreadID
	RequestID string
}

// Tool represents a tool the model can invoke
// input/output is a generic map to maintain flexibility.
type Tool interface {
	Name() string
	Spec() domain.ToolSpec
	Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error)
}

// Conditional is implemented by tools that are only offered in some turns.
type Conditional interface {
	Enabled(ctx context.Context, tctx ToolContext) bool
}

// Registry holds the known tools. The set offered to the model is derived
// again on every turn through Active, so tools registered or removed while a
// conversation is open take effect on its next turn.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Remove drops a tool by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Active returns the tools enabled for this turn, sorted by name.
func (r *Registry) Active(ctx context.Context, tctx ToolContext) []Tool {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if c, ok := t.(Conditional); ok && !c.Enabled(ctx, tctx) {
			continue
		}
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Specs returns the model-facing descriptions of tools.
func Specs(tools []Tool) []domain.ToolSpec {
	out := make([]domain.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Spec())
	}
	return out
}
