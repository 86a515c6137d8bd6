package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/models"
)

func TestParseTodos(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		want    []models.TodoItem
		wantErr string
	}{
		{
			name: "valid list",
			args: map[string]any{"todos": []any{
				map[string]any{"content": "find the bug", "status": "in_progress"},
				map[string]any{"content": "write the fix", "status": "pending"},
			}},
			want: []models.TodoItem{
				{Content: "find the bug", Status: TodoStatusInProgress},
				{Content: "write the fix", Status: TodoStatusPending},
			},
		},
		{
			name: "empty list",
			args: map[string]any{"todos": []any{}},
			want: []models.TodoItem{},
		},
		{
			name:    "todos not an array",
			args:    map[string]any{"todos": "all of them"},
			wantErr: "must be an array",
		},
		{
			name:    "missing content",
			args:    map[string]any{"todos": []any{map[string]any{"status": "pending"}}},
			wantErr: "missing content",
		},
		{
			name:    "invalid status",
			args:    map[string]any{"todos": []any{map[string]any{"content": "x", "status": "paused"}}},
			wantErr: "invalid status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTodos(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTodoTrackerReportsChangesOnly(t *testing.T) {
	tracker := &todoTracker{}
	args := map[string]any{"todos": []any{
		map[string]any{"content": "step one", "status": "pending"},
	}}

	list, changed := tracker.Update(args)
	require.True(t, changed)
	require.Len(t, list, 1)

	_, changed = tracker.Update(args)
	assert.False(t, changed, "identical list must not report a change")

	args["todos"] = []any{
		map[string]any{"content": "step one", "status": "completed"},
	}
	list, changed = tracker.Update(args)
	require.True(t, changed)
	assert.Equal(t, TodoStatusCompleted, list[0].Status)
}

func TestLocalTodoWrite(t *testing.T) {
	exec := NewLocalExecutor(newTestWorkspace(t))

	result := exec.Execute(context.Background(), ToolCall{
		ID:   "tc-1",
		Name: ToolTodoWrite,
		Args: map[string]any{"todos": []any{
			map[string]any{"content": "a", "status": "completed"},
			map[string]any{"content": "b", "status": "pending"},
		}},
	})
	require.False(t, result.IsError)
	assert.Contains(t, result.Content, "2 items, 1 completed")

	result = exec.Execute(context.Background(), ToolCall{
		ID:   "tc-2",
		Name: ToolTodoWrite,
		Args: map[string]any{"todos": "nope"},
	})
	assert.True(t, result.IsError)
}
