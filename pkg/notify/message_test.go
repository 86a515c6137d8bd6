package notify

import (
	"fmt"
	"strings"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/models"
)

func TestBuildApprovalMessage(t *testing.T) {
	req := models.HITLRequestPayload{
		InterruptID: "int-1",
		ActionRequests: []models.ActionRequest{
			{Name: "bash", Args: map[string]any{"command": "rm -rf /tmp/scratch"}},
			{Name: "write_file", Args: map[string]any{"path": "out.txt"}},
		},
	}
	blocks := BuildApprovalMessage("sess-1", req, "https://dash.example.com")

	require.Len(t, blocks, 3)

	header, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, header.Text.Text, "Approval required")
	assert.Contains(t, header.Text.Text, "sess-1")
	assert.Contains(t, header.Text.Text, "2 pending action(s)")

	actions, ok := blocks[1].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, actions.Text.Text, "`bash`")
	assert.Contains(t, actions.Text.Text, "rm -rf /tmp/scratch")
	assert.Contains(t, actions.Text.Text, "`write_file`")

	action, ok := blocks[2].(*goslack.ActionBlock)
	require.True(t, ok)
	require.Len(t, action.Elements.ElementSet, 1)
	btn, ok := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	require.True(t, ok)
	assert.Equal(t, "Review in Dashboard", btn.Text.Text)
	assert.Equal(t, "https://dash.example.com/sessions/sess-1", btn.URL)
}

func TestBuildApprovalMessage_NoDashboard(t *testing.T) {
	req := models.HITLRequestPayload{
		InterruptID:    "int-1",
		ActionRequests: []models.ActionRequest{{Name: "bash"}},
	}
	blocks := BuildApprovalMessage("sess-1", req, "")

	require.Len(t, blocks, 2)
	for _, b := range blocks {
		_, isAction := b.(*goslack.ActionBlock)
		assert.False(t, isAction, "no dashboard URL means no button block")
	}
}

func TestBuildApprovalMessage_TruncatesActionList(t *testing.T) {
	req := models.HITLRequestPayload{InterruptID: "int-1"}
	for i := 0; i < maxListedActions+5; i++ {
		req.ActionRequests = append(req.ActionRequests, models.ActionRequest{
			Name: fmt.Sprintf("tool_%d", i),
		})
	}
	blocks := BuildApprovalMessage("sess-1", req, "")

	require.Len(t, blocks, 2)
	actions := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, actions.Text.Text, "tool_0")
	assert.Contains(t, actions.Text.Text, fmt.Sprintf("tool_%d", maxListedActions-1))
	assert.NotContains(t, actions.Text.Text, fmt.Sprintf("tool_%d`", maxListedActions))
	assert.Contains(t, actions.Text.Text, "and 5 more")
}

func TestSummarizeArgs(t *testing.T) {
	t.Run("empty args", func(t *testing.T) {
		assert.Empty(t, summarizeArgs(nil))
		assert.Empty(t, summarizeArgs(map[string]any{}))
	})

	t.Run("compact json", func(t *testing.T) {
		got := summarizeArgs(map[string]any{"path": "a.txt"})
		assert.Equal(t, "`"+`{"path":"a.txt"}`+"`", got)
	})

	t.Run("long args truncated", func(t *testing.T) {
		got := summarizeArgs(map[string]any{"data": strings.Repeat("x", 500)})
		assert.LessOrEqual(t, len(got), 220)
		assert.Contains(t, got, "...}")
	})
}

func TestTruncateForSlack(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncateForSlack(short))

	long := strings.Repeat("a", maxBlockTextLength+100)
	got := truncateForSlack(long)
	assert.Less(t, len(got), len(long))
	assert.Contains(t, got, "(truncated)")
}
