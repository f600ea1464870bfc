package domain

import (
	"encoding/json"
	"time"
)

// ThreadSummary is one entry of a user's thread index, used by thread pickers.
type ThreadSummary struct {
	ThreadID  ThreadID  `json:"ThreadId"`
	Title     string    `json:"Title"`
	CreatedAt time.Time `json:"CreatedAt"`
}

// ThreadPointer is a user's thread record: the opaque serialized conversation
// state plus the history key extracted from it (empty when no turn completed yet).
type ThreadPointer struct {
	UserID     UserID
	ThreadID   ThreadID
	State      json.RawMessage
	HistoryKey HistoryKey
}
