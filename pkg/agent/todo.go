package agent

import (
	"fmt"

	"github.com/dataagent-io/dataagent/pkg/models"
)

// Todo item statuses accepted by the todo_write tool.
const (
	TodoStatusPending    = "pending"
	TodoStatusInProgress = "in_progress"
	TodoStatusCompleted  = "completed"
)

// todoTracker holds the turn's working plan so the pipeline emits
// todo_update only when the list actually changed.
type todoTracker struct {
	last []models.TodoItem
}

// Update swaps in the list carried by a successful todo_write call.
// Returns false for invalid args or an unchanged list.
func (t *todoTracker) Update(args map[string]any) ([]models.TodoItem, bool) {
	todos, err := parseTodos(args)
	if err != nil || todosEqual(t.last, todos) {
		return nil, false
	}
	t.last = todos
	return todos, true
}

func parseTodos(args map[string]any) ([]models.TodoItem, error) {
	raw, ok := args["todos"].([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array", "todos")
	}
	todos := make([]models.TodoItem, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("todos[%d] must be an object", i)
		}
		content, _ := m["content"].(string)
		if content == "" {
			return nil, fmt.Errorf("todos[%d] is missing content", i)
		}
		status, _ := m["status"].(string)
		switch status {
		case TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted:
		default:
			return nil, fmt.Errorf("todos[%d] has invalid status %q", i, status)
		}
		todos = append(todos, models.TodoItem{Content: content, Status: status})
	}
	return todos, nil
}

func todosEqual(a, b []models.TodoItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
