package models

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// CreateMessageRequest contains fields for appending a message to a session.
// The sequence number is assigned by the message service (strictly
// increasing per session); callers never supply it.
type CreateMessageRequest struct {
	SessionID  string           `json:"session_id"`
	Role       Role             `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []map[string]any `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// MessageFilters contains pagination options for message history.
type MessageFilters struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ConversationMessage is the in-memory message shape fed to the LLM backend.
type ConversationMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
