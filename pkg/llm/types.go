// Package llm defines the streaming backend interface the agent pipeline
// consumes, plus the OpenAI-compatible HTTP implementation.
package llm

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the backend.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string
}

// ToolCall is a completed tool invocation request from the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Usage is token accounting for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Request is one streaming generation call.
type Request struct {
	SessionID string
	Messages  []Message
	Tools     []ToolDef
}

// ToolCallDelta is a partial tool-call fragment from the stream. Any of
// the fields may be absent on a given fragment; the consumer buffers and
// merges them until the call is complete.
type ToolCallDelta struct {
	// Index is the provider-assigned slot for this call within the
	// response, when the provider sends one.
	Index *int
	ID    string
	Name  string
	// ArgsFragment is a piece of the JSON arguments string.
	ArgsFragment string
	// Args is set instead of ArgsFragment when the provider delivers
	// the arguments as a complete object.
	Args map[string]any
}

// Chunk is one streamed unit from the backend. Exactly one of the
// content fields is meaningful per chunk.
type Chunk struct {
	// TextDelta is a piece of assistant text.
	TextDelta string

	// ToolCall is a partial tool-call fragment.
	ToolCall *ToolCallDelta

	// FinishReason is non-empty on the chunk that ends a message
	// ("stop", "tool_calls", "length").
	FinishReason string

	// Usage arrives once per call, after the final content chunk.
	Usage *Usage
}
