package domain

import "strings"

// ContentType identifies the kind of a message content part.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentData       ContentType = "data"
	ContentToolCall   ContentType = "tool_call"
	ContentToolResult ContentType = "tool_result"
)

// Content is one typed part of a message (text, binary payload, tool call or tool result).
type Content struct {
	Type ContentType `json:"Type"`
	Text string      `json:"Text,omitempty"`

	// Binary payloads (images, files).
	MIMEType string `json:"MimeType,omitempty"`
	Data     []byte `json:"Data,omitempty"`

	// Tool plumbing.
	ToolCallID string         `json:"CallId,omitempty"`
	ToolName   string         `json:"Name,omitempty"`
	Arguments  map[string]any `json:"Arguments,omitempty"`
	Result     map[string]any `json:"Result,omitempty"`
}

// Message represents one turn's contribution from a single role.
type Message struct {
	Role      Role      `json:"Role"`
	Text      string    `json:"Text"`
	Contents  []Content `json:"Contents,omitempty"`
	CreatedAt Timestamp `json:"CreatedAt,omitzero"`
}

// NewTextMessage builds a message with a single text part.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:     role,
		Text:     text,
		Contents: []Content{{Type: ContentText, Text: text}},
	}
}

// IsRenderable reports whether a display consumer has anything to show.
// Pure tool-plumbing messages (no text, only calls/results) are not renderable
// but must still be persisted.
func (m Message) IsRenderable() bool {
	if strings.TrimSpace(m.Text) != "" {
		return true
	}
	for _, c := range m.Contents {
		switch c.Type {
		case ContentText:
			if strings.TrimSpace(c.Text) != "" {
				return true
			}
		case ContentData:
			if len(c.Data) > 0 {
				return true
			}
		}
	}
	return false
}

// ToolCalls returns the tool-call parts of the message.
func (m Message) ToolCalls() []Content {
	var out []Content
	for _, c := range m.Contents {
		if c.Type == ContentToolCall {
			out = append(out, c)
		}
	}
	return out
}
