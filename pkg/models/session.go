package models

// CreateSessionRequest contains fields for creating a new session.
// Sessions are created implicitly when the first message of a conversation
// arrives; SessionID may be pre-assigned by the client or generated.
type CreateSessionRequest struct {
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	AssistantID string         `json:"assistant_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SessionFilters contains filtering options for listing sessions.
type SessionFilters struct {
	UserID          string `json:"user_id,omitempty"`
	AssistantID     string `json:"assistant_id,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	Offset          int    `json:"offset,omitempty"`
}
