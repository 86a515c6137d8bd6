// Package models defines the runtime event model and the request/response
// types shared between services and the API layer.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates the event union on the wire.
type EventType string

const (
	EventTypeText          EventType = "text"
	EventTypeToolCall      EventType = "tool_call"
	EventTypeToolResult    EventType = "tool_result"
	EventTypeHITLRequest   EventType = "hitl_request"
	EventTypeTodoUpdate    EventType = "todo_update"
	EventTypeFileOperation EventType = "file_operation"
	EventTypeError         EventType = "error"
	EventTypeDone          EventType = "done"

	// Runtime-level events (same envelope, emitted by the connection runtime).
	EventTypeConnected EventType = "connected"
	EventTypePong      EventType = "pong"
)

// Tool result / file operation status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Protocol error codes carried by ErrorPayload.Code.
const (
	ErrCodeInvalidMessage     = "INVALID_MESSAGE"
	ErrCodeEmptyMessage       = "EMPTY_MESSAGE"
	ErrCodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// Payload is the variant-specific body of an Event.
type Payload interface {
	payloadType() EventType
}

// Event is a single runtime event emitted to clients. The wire form is a
// self-describing envelope:
//
//	{"event_type": "...", "timestamp": 1712345678.123, "data": {...}}
//
// Timestamp is floating-point seconds since the Unix epoch.
type Event struct {
	Type      EventType
	Timestamp float64
	Payload   Payload
}

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

func now() float64 {
	return float64(timeNow().UnixNano()) / float64(time.Second)
}

// New wraps a payload in an Event stamped with the current time.
func New(p Payload) Event {
	return Event{Type: p.payloadType(), Timestamp: now(), Payload: p}
}

// TextPayload carries assistant text. A final marker (empty content,
// is_final=true) terminates each accumulated text block.
type TextPayload struct {
	Content string `json:"content"`
	IsFinal bool   `json:"is_final"`
}

func (TextPayload) payloadType() EventType { return EventTypeText }

// ToolCallPayload announces a fully-assembled tool call. Emitted at most
// once per tool_call_id regardless of how many partial chunks arrived.
type ToolCallPayload struct {
	ToolName   string         `json:"tool_name"`
	ToolArgs   map[string]any `json:"tool_args"`
	ToolCallID string         `json:"tool_call_id"`
}

func (ToolCallPayload) payloadType() EventType { return EventTypeToolCall }

// ToolResultPayload carries the outcome of an earlier tool call.
type ToolResultPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	Status     string `json:"status"`
}

func (ToolResultPayload) payloadType() EventType { return EventTypeToolResult }

// ActionRequest describes one tool call awaiting human approval.
type ActionRequest struct {
	Name        string         `json:"name"`
	Args        map[string]any `json:"args"`
	Description string         `json:"description,omitempty"`
}

// HITLRequestPayload asks the client to approve or reject pending tool
// calls. HITLArgs is forwarded verbatim for the "human" interaction tool
// (interaction_type and UI parameters); the core does not interpret it.
type HITLRequestPayload struct {
	InterruptID    string          `json:"interrupt_id"`
	ActionRequests []ActionRequest `json:"action_requests"`
	HITLArgs       map[string]any  `json:"hitl_args,omitempty"`
}

func (HITLRequestPayload) payloadType() EventType { return EventTypeHITLRequest }

// TodoItem is a single entry of the agent's working plan.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// TodoUpdatePayload is emitted whenever the agent's todo list changes.
type TodoUpdatePayload struct {
	Todos []TodoItem `json:"todos"`
}

func (TodoUpdatePayload) payloadType() EventType { return EventTypeTodoUpdate }

// FileMetrics quantifies a tracked file operation.
type FileMetrics struct {
	LinesRead    int `json:"lines_read"`
	LinesWritten int `json:"lines_written"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// FileOperationPayload correlates a {read,write,edit}_file tool round-trip
// into a single enriched event with metrics and an optional unified diff.
type FileOperationPayload struct {
	Operation string      `json:"operation"`
	FilePath  string      `json:"file_path"`
	Metrics   FileMetrics `json:"metrics"`
	Diff      string      `json:"diff,omitempty"`
	Status    string      `json:"status"`
}

func (FileOperationPayload) payloadType() EventType { return EventTypeFileOperation }

// ErrorPayload reports a failure. Recoverable errors leave the session
// usable; non-recoverable errors terminate the current stream.
type ErrorPayload struct {
	Error       string `json:"error"`
	Code        string `json:"error_code,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

func (ErrorPayload) payloadType() EventType { return EventTypeError }

// TokenUsage aggregates token consumption across the LLM calls of a round.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// DonePayload terminates a round. Exactly one done (or one error) ends
// every execution stream.
type DonePayload struct {
	Cancelled  bool        `json:"cancelled"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
}

func (DonePayload) payloadType() EventType { return EventTypeDone }

// ConnectedPayload is the first event on a newly accepted connection.
type ConnectedPayload struct {
	SessionID string `json:"session_id"`
}

func (ConnectedPayload) payloadType() EventType { return EventTypeConnected }

// PongPayload answers a client ping.
type PongPayload struct{}

func (PongPayload) payloadType() EventType { return EventTypePong }

// UnknownEventTypeError is returned by Decode for a missing or unknown
// event_type discriminant.
type UnknownEventTypeError struct {
	Type string
}

func (e *UnknownEventTypeError) Error() string {
	if e.Type == "" {
		return "event has no event_type"
	}
	return fmt.Sprintf("unknown event_type: %s", e.Type)
}

// envelope is the wire form of Event.
type envelope struct {
	Type      EventType       `json:"event_type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// MarshalJSON encodes the event as a self-describing envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(envelope{Type: e.Type, Timestamp: e.Timestamp, Data: data})
}

// UnmarshalJSON decodes an envelope, dispatching on event_type.
// Returns *UnknownEventTypeError for a missing or unrecognized discriminant.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode event envelope: %w", err)
	}
	payload, err := decodePayload(env.Type, env.Data)
	if err != nil {
		return err
	}
	e.Type = env.Type
	e.Timestamp = env.Timestamp
	e.Payload = payload
	return nil
}

// decodePayload unmarshals the data object into the variant selected by t.
// Payloads are stored by value so that decode(encode(e)) compares equal to e.
func decodePayload(t EventType, data json.RawMessage) (Payload, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	decode := func(dst any) error {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", t, err)
		}
		return nil
	}

	switch t {
	case EventTypeText:
		var p TextPayload
		return p, decode(&p)
	case EventTypeToolCall:
		var p ToolCallPayload
		return p, decode(&p)
	case EventTypeToolResult:
		var p ToolResultPayload
		return p, decode(&p)
	case EventTypeHITLRequest:
		var p HITLRequestPayload
		return p, decode(&p)
	case EventTypeTodoUpdate:
		var p TodoUpdatePayload
		return p, decode(&p)
	case EventTypeFileOperation:
		var p FileOperationPayload
		return p, decode(&p)
	case EventTypeError:
		var p ErrorPayload
		return p, decode(&p)
	case EventTypeDone:
		var p DonePayload
		return p, decode(&p)
	case EventTypeConnected:
		var p ConnectedPayload
		return p, decode(&p)
	case EventTypePong:
		var p PongPayload
		return p, decode(&p)
	default:
		return nil, &UnknownEventTypeError{Type: string(t)}
	}
}

// Encode serializes an event to its wire form.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses the wire form back into an Event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
