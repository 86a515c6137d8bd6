package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock pins event timestamps for deterministic assertions.
func fixedClock(t *testing.T) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return time.Unix(1712345678, 500000000) }
	t.Cleanup(func() { timeNow = orig })
}

// TestEventRoundTrip verifies decode(encode(e)) == e for every variant.
// Note: map-valued fields use float64/string values because JSON numbers
// decode as float64.
func TestEventRoundTrip(t *testing.T) {
	fixedClock(t)

	tests := []struct {
		name    string
		payload Payload
	}{
		{"text partial", TextPayload{Content: "Hello", IsFinal: false}},
		{"text final", TextPayload{Content: "", IsFinal: true}},
		{"tool_call", ToolCallPayload{
			ToolName:   "ls",
			ToolArgs:   map[string]any{"path": "/workspace", "limit": float64(10)},
			ToolCallID: "tc-1",
		}},
		{"tool_result success", ToolResultPayload{
			ToolCallID: "tc-1", Result: ".\n..\nfile.txt", Status: StatusSuccess,
		}},
		{"tool_result error", ToolResultPayload{
			ToolCallID: "tc-2", Result: "path escapes workspace", Status: StatusError,
		}},
		{"hitl_request", HITLRequestPayload{
			InterruptID: "ii-1",
			ActionRequests: []ActionRequest{
				{Name: "ls", Args: map[string]any{"path": "/workspace"}, Description: "List files"},
			},
		}},
		{"hitl_request human tool", HITLRequestPayload{
			InterruptID:    "ii-2",
			ActionRequests: []ActionRequest{{Name: "human", Args: map[string]any{}}},
			HITLArgs:       map[string]any{"interaction_type": "choice", "options": []any{"a", "b"}},
		}},
		{"todo_update", TodoUpdatePayload{
			Todos: []TodoItem{
				{Content: "read config", Status: "completed"},
				{Content: "apply fix", Status: "in_progress"},
			},
		}},
		{"file_operation", FileOperationPayload{
			Operation: "write_file",
			FilePath:  "notes.txt",
			Metrics:   FileMetrics{LinesWritten: 3, LinesAdded: 3},
			Diff:      "--- a/notes.txt\n+++ b/notes.txt\n@@ -0,0 +1,3 @@\n+a\n+b\n+c\n",
			Status:    StatusSuccess,
		}},
		{"error", ErrorPayload{Error: "backend unavailable", Recoverable: false}},
		{"error with code", ErrorPayload{Error: "empty message", Code: ErrCodeEmptyMessage, Recoverable: true}},
		{"done", DonePayload{Cancelled: false}},
		{"done cancelled with usage", DonePayload{
			Cancelled:  true,
			TokenUsage: &TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		}},
		{"connected", ConnectedPayload{SessionID: "sess-1"}},
		{"pong", PongPayload{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := New(tt.payload)

			data, err := Encode(ev)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ev, decoded)
		})
	}
}

// TestEventEnvelopeFields verifies every encoded event carries the
// event_type discriminant and a timestamp.
func TestEventEnvelopeFields(t *testing.T) {
	fixedClock(t)

	ev := New(TextPayload{Content: "hi"})
	data, err := Encode(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "text", raw["event_type"])
	assert.InDelta(t, 1712345678.5, raw["timestamp"], 0.001)
	assert.Contains(t, raw, "data")
}

func TestDecodeUnknownEventType(t *testing.T) {
	_, err := Decode([]byte(`{"event_type":"bogus","timestamp":1,"data":{}}`))
	require.Error(t, err)

	var unknownErr *UnknownEventTypeError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "bogus", unknownErr.Type)
}

func TestDecodeMissingEventType(t *testing.T) {
	_, err := Decode([]byte(`{"timestamp":1,"data":{}}`))
	require.Error(t, err)

	var unknownErr *UnknownEventTypeError
	require.True(t, errors.As(err, &unknownErr))
	assert.Empty(t, unknownErr.Type)
}

func TestDecodeMissingDataObject(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"pong","timestamp":2}`))
	require.NoError(t, err)
	assert.Equal(t, EventTypePong, ev.Type)
	assert.Equal(t, PongPayload{}, ev.Payload)
}
