package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/models"
)

func TestTranscriptRecorder(t *testing.T) {
	t.Run("text only yields one assistant message", func(t *testing.T) {
		r := NewTranscriptRecorder()
		r.Observe(models.New(models.TextPayload{Content: "Hel"}))
		r.Observe(models.New(models.TextPayload{Content: "lo"}))
		r.Observe(models.New(models.TextPayload{Content: "", IsFinal: true}))
		r.Observe(models.New(models.DonePayload{}))

		msgs := r.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, models.RoleAssistant, msgs[0].Role)
		assert.Equal(t, "Hello", msgs[0].Content)
		assert.Empty(t, msgs[0].ToolCalls)
	})

	t.Run("tool round interleaves assistant and tool messages", func(t *testing.T) {
		r := NewTranscriptRecorder()
		r.Observe(models.New(models.TextPayload{Content: "checking"}))
		r.Observe(models.New(models.ToolCallPayload{
			ToolName:   "read_file",
			ToolArgs:   map[string]any{"path": "a.txt"},
			ToolCallID: "call-1",
		}))
		r.Observe(models.New(models.ToolResultPayload{
			ToolCallID: "call-1",
			Result:     "contents",
			Status:     models.StatusSuccess,
		}))
		r.Observe(models.New(models.TextPayload{Content: "done"}))
		r.Observe(models.New(models.DonePayload{}))

		msgs := r.Messages()
		require.Len(t, msgs, 3)

		assert.Equal(t, models.RoleAssistant, msgs[0].Role)
		assert.Equal(t, "checking", msgs[0].Content)
		require.Len(t, msgs[0].ToolCalls, 1)
		assert.Equal(t, "call-1", msgs[0].ToolCalls[0]["id"])
		assert.Equal(t, "read_file", msgs[0].ToolCalls[0]["name"])

		assert.Equal(t, models.RoleTool, msgs[1].Role)
		assert.Equal(t, "contents", msgs[1].Content)
		assert.Equal(t, "call-1", msgs[1].ToolCallID)

		assert.Equal(t, models.RoleAssistant, msgs[2].Role)
		assert.Equal(t, "done", msgs[2].Content)
	})

	t.Run("empty stream yields nothing", func(t *testing.T) {
		r := NewTranscriptRecorder()
		r.Observe(models.New(models.DonePayload{Cancelled: true}))
		assert.Empty(t, r.Messages())
	})
}
