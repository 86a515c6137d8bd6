package api

import (
	"encoding/json"
	"strings"

	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/services"
)

// TranscriptRecorder folds an event stream back into conversation
// messages for persistence: accumulated text plus announced tool calls
// become assistant messages, each tool result becomes a tool message.
// A tool result flushes the pending assistant message first so the
// stored sequence mirrors the order the model produced.
type TranscriptRecorder struct {
	text  strings.Builder
	calls []llm.ToolCall
	out   []models.CreateMessageRequest
}

func NewTranscriptRecorder() *TranscriptRecorder {
	return &TranscriptRecorder{}
}

func (r *TranscriptRecorder) Observe(ev models.Event) {
	switch p := ev.Payload.(type) {
	case models.TextPayload:
		r.text.WriteString(p.Content)
	case models.ToolCallPayload:
		args, err := json.Marshal(p.ToolArgs)
		if err != nil {
			args = []byte("{}")
		}
		r.calls = append(r.calls, llm.ToolCall{
			ID:        p.ToolCallID,
			Name:      p.ToolName,
			Arguments: string(args),
		})
	case models.ToolResultPayload:
		r.flushAssistant()
		r.out = append(r.out, models.CreateMessageRequest{
			Role:       models.RoleTool,
			Content:    p.Result,
			ToolCallID: p.ToolCallID,
		})
	}
}

func (r *TranscriptRecorder) flushAssistant() {
	if r.text.Len() == 0 && len(r.calls) == 0 {
		return
	}
	r.out = append(r.out, models.CreateMessageRequest{
		Role:      models.RoleAssistant,
		Content:   r.text.String(),
		ToolCalls: services.EncodeToolCalls(r.calls),
	})
	r.text.Reset()
	r.calls = nil
}

// messages returns the recorded transcript in order. SessionID is left
// empty for the caller to fill in.
func (r *TranscriptRecorder) Messages() []models.CreateMessageRequest {
	r.flushAssistant()
	return r.out
}
