package agent

import (
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

// DefaultMaxDiffLines caps the unified diff attached to file_operation
// events.
const DefaultMaxDiffLines = 200

// trackedOp is the stored half of a file-tool round trip, captured when
// the tool call is announced.
type trackedOp struct {
	op           string
	displayPath  string
	physicalPath string
	before       string
	resolveErr   error
}

// fileOpTracker correlates read_file/write_file/edit_file tool calls
// with their results and produces enriched file_operation payloads with
// metrics and diffs.
type fileOpTracker struct {
	ws           *workspace.Workspace
	maxDiffLines int
	pending      map[string]*trackedOp
}

func newFileOpTracker(ws *workspace.Workspace, maxDiffLines int) *fileOpTracker {
	if maxDiffLines <= 0 {
		maxDiffLines = DefaultMaxDiffLines
	}
	return &fileOpTracker{
		ws:           ws,
		maxDiffLines: maxDiffLines,
		pending:      make(map[string]*trackedOp),
	}
}

// tracks reports whether the tool participates in file-op tracking.
func (t *fileOpTracker) tracks(toolName string) bool {
	switch toolName {
	case ToolReadFile, ToolWriteFile, ToolEditFile:
		return true
	}
	return false
}

// Track records the call-side state: the resolved physical path and, for
// mutations, the current content. A failed resolution (sandbox escape)
// is stored so the completion carries status=error with zero metrics.
func (t *fileOpTracker) Track(call ToolCall) {
	if t.ws == nil || !t.tracks(call.Name) {
		return
	}
	path, _ := call.Args["path"].(string)
	op := &trackedOp{op: call.Name, displayPath: path}

	physical, err := t.ws.Resolve(path)
	if err != nil {
		op.resolveErr = err
	} else {
		op.physicalPath = physical
		if call.Name != ToolReadFile {
			if data, readErr := os.ReadFile(physical); readErr == nil {
				op.before = string(data)
			}
		}
	}
	t.pending[call.ID] = op
}

// Complete consumes the stored call state and builds the file_operation
// payload for the matching tool result. Returns false when the call was
// not tracked.
func (t *fileOpTracker) Complete(callID string, result *ToolResult) (models.FileOperationPayload, bool) {
	op, ok := t.pending[callID]
	if !ok {
		return models.FileOperationPayload{}, false
	}
	delete(t.pending, callID)

	payload := models.FileOperationPayload{
		Operation: op.op,
		FilePath:  op.displayPath,
		Status:    models.StatusSuccess,
	}
	if result.IsError || op.resolveErr != nil {
		payload.Status = models.StatusError
		return payload, true
	}

	switch op.op {
	case ToolReadFile:
		payload.Metrics.LinesRead = countLines(result.Content)
	case ToolWriteFile, ToolEditFile:
		after := ""
		if data, err := os.ReadFile(op.physicalPath); err == nil {
			after = string(data)
		}
		payload.Metrics.LinesWritten = countLines(after)
		diff := unifiedDiff(op.before, after, op.displayPath)
		payload.Metrics.LinesAdded, payload.Metrics.LinesRemoved = countDiffLines(diff)
		payload.Diff = truncateDiff(diff, t.maxDiffLines)
	}
	return payload, true
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func unifiedDiff(before, after, path string) string {
	if before == after {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

// countDiffLines counts added and removed lines in a unified diff,
// excluding the +++/--- file headers.
func countDiffLines(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

func truncateDiff(diff string, maxLines int) string {
	lines := strings.Split(diff, "\n")
	if len(lines) <= maxLines {
		return diff
	}
	return strings.Join(lines[:maxLines], "\n") + "\n... (diff truncated)"
}
