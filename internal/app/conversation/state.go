package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// Conversation is the in-memory view of one open thread.
type Conversation struct {
	UserID     domain.UserID
	ThreadID   domain.ThreadID
	Title      string
	HistoryKey domain.HistoryKey
	// Messages is the full history, tool plumbing included, oldest first.
	Messages []domain.Message
	Turns    int
}

// Transcript returns the messages a display consumer can render.
func (c *Conversation) Transcript() []domain.Message {
	out := make([]domain.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.IsRenderable() {
			out = append(out, m)
		}
	}
	return out
}

// TurnResult is what one successful Send produced.
type TurnResult struct {
	UserMessage domain.Message
	// Messages holds every message persisted for the turn, in order.
	Messages []domain.Message
	Reply    string
}

// threadState is the serialized conversation state stored as the thread
// record's threadData. storeState carries the chat history key.
type threadState struct {
	StoreState string    `json:"storeState"`
	Title      string    `json:"title,omitempty"`
	Turns      int       `json:"turns"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *Service) encodeState(st threadState) (json.RawMessage, error) {
	b, err := s.json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode thread state: %w", err)
	}
	return b, nil
}

// decodeState reads what it can from a stored state; the history key itself
// is extracted by the thread store. An undecodable state yields zero title
// and turn count.
func (s *Service) decodeState(ctx context.Context, raw json.RawMessage) threadState {
	var st threadState
	if len(raw) == 0 {
		return st
	}
	if err := s.json.Unmarshal(raw, &st); err != nil {
		observability.LoggerFromContext(ctx).Warn("undecodable thread state", "error", err)
		return threadState{}
	}
	return st
}
