package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	m := workspace.NewManager(t.TempDir(), workspace.DefaultQuota, false)
	ws, err := m.Get("tester")
	require.NoError(t, err)
	return ws
}

func TestTrackerWriteProducesDiff(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.WriteFileString("notes.txt", "alpha\nbeta\n"))

	tracker := newFileOpTracker(ws, 0)
	call := ToolCall{
		ID:   "tc-1",
		Name: ToolWriteFile,
		Args: map[string]any{"path": "notes.txt", "content": "alpha\ngamma\ndelta\n"},
	}
	tracker.Track(call)

	require.NoError(t, ws.WriteFileString("notes.txt", "alpha\ngamma\ndelta\n"))
	payload, ok := tracker.Complete("tc-1", &ToolResult{CallID: "tc-1", Name: ToolWriteFile})
	require.True(t, ok)

	assert.Equal(t, ToolWriteFile, payload.Operation)
	assert.Equal(t, "notes.txt", payload.FilePath)
	assert.Equal(t, models.StatusSuccess, payload.Status)
	assert.Equal(t, 3, payload.Metrics.LinesWritten)
	assert.Equal(t, 2, payload.Metrics.LinesAdded)
	assert.Equal(t, 1, payload.Metrics.LinesRemoved)
	require.NotEmpty(t, payload.Diff)
	assert.Contains(t, payload.Diff, "-beta")
	assert.Contains(t, payload.Diff, "+gamma")

	// Counts match the diff body.
	added, removed := countDiffLines(payload.Diff)
	assert.Equal(t, payload.Metrics.LinesAdded, added)
	assert.Equal(t, payload.Metrics.LinesRemoved, removed)
}

func TestTrackerReadMetrics(t *testing.T) {
	ws := newTestWorkspace(t)
	tracker := newFileOpTracker(ws, 0)

	tracker.Track(ToolCall{ID: "tc-2", Name: ToolReadFile, Args: map[string]any{"path": "a.txt"}})
	payload, ok := tracker.Complete("tc-2", &ToolResult{CallID: "tc-2", Content: "one\ntwo\nthree"})
	require.True(t, ok)

	assert.Equal(t, models.StatusSuccess, payload.Status)
	assert.Equal(t, 3, payload.Metrics.LinesRead)
	assert.Empty(t, payload.Diff)
}

func TestTrackerPathEscape(t *testing.T) {
	ws := newTestWorkspace(t)
	tracker := newFileOpTracker(ws, 0)

	tracker.Track(ToolCall{ID: "tc-3", Name: ToolReadFile, Args: map[string]any{"path": "../../etc/passwd"}})
	payload, ok := tracker.Complete("tc-3", &ToolResult{CallID: "tc-3", Content: "denied", IsError: true})
	require.True(t, ok)

	assert.Equal(t, models.StatusError, payload.Status)
	assert.Equal(t, models.FileMetrics{}, payload.Metrics)
	assert.Empty(t, payload.Diff)
}

func TestTrackerErrorResultZeroMetrics(t *testing.T) {
	ws := newTestWorkspace(t)
	tracker := newFileOpTracker(ws, 0)

	tracker.Track(ToolCall{ID: "tc-4", Name: ToolWriteFile, Args: map[string]any{"path": "x.txt"}})
	payload, ok := tracker.Complete("tc-4", &ToolResult{CallID: "tc-4", Content: "quota exceeded", IsError: true})
	require.True(t, ok)

	assert.Equal(t, models.StatusError, payload.Status)
	assert.Equal(t, models.FileMetrics{}, payload.Metrics)
}

func TestTrackerIgnoresUntrackedTools(t *testing.T) {
	ws := newTestWorkspace(t)
	tracker := newFileOpTracker(ws, 0)

	tracker.Track(ToolCall{ID: "tc-5", Name: ToolListDir, Args: map[string]any{"path": "."}})
	_, ok := tracker.Complete("tc-5", &ToolResult{CallID: "tc-5"})
	assert.False(t, ok)

	_, ok = tracker.Complete("never-tracked", &ToolResult{})
	assert.False(t, ok)
}

func TestTrackerDiffTruncation(t *testing.T) {
	ws := newTestWorkspace(t)
	tracker := newFileOpTracker(ws, 6)

	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("line\n")
	}
	tracker.Track(ToolCall{ID: "tc-6", Name: ToolWriteFile, Args: map[string]any{"path": "big.txt"}})
	require.NoError(t, ws.WriteFileString("big.txt", b.String()))

	payload, ok := tracker.Complete("tc-6", &ToolResult{CallID: "tc-6"})
	require.True(t, ok)
	assert.Equal(t, 50, payload.Metrics.LinesAdded)
	assert.LessOrEqual(t, len(strings.Split(payload.Diff, "\n")), 8)
	assert.Contains(t, payload.Diff, "diff truncated")
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("x"))
	assert.Equal(t, 1, countLines("x\n"))
	assert.Equal(t, 2, countLines("x\ny"))
}
