package domain

import "time"

type UserID string
type ThreadID string

// HistoryKey is the storage key of a thread's chat-history document.
type HistoryKey string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

type Timestamp = time.Time
