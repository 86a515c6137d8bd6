package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

// Local workspace tool names.
const (
	ToolReadFile  = "read_file"
	ToolWriteFile = "write_file"
	ToolEditFile  = "edit_file"
	ToolListDir   = "list_dir"
	ToolTodoWrite = "todo_write"
)

// LocalExecutor serves the built-in filesystem tools against a user's
// sandboxed workspace. Read-only tools are auto-approved; mutations
// require a human decision when an approval handler is attached.
type LocalExecutor struct {
	ws *workspace.Workspace
}

// NewLocalExecutor creates the workspace-backed tool executor.
func NewLocalExecutor(ws *workspace.Workspace) *LocalExecutor {
	return &LocalExecutor{ws: ws}
}

// Execute runs one of the built-in tools. Sandbox violations and quota
// errors come back as error results, never as panics or Go errors.
func (e *LocalExecutor) Execute(_ context.Context, call ToolCall) *ToolResult {
	switch call.Name {
	case ToolReadFile:
		return e.readFile(call)
	case ToolWriteFile:
		return e.writeFile(call)
	case ToolEditFile:
		return e.editFile(call)
	case ToolListDir:
		return e.listDir(call)
	case ToolTodoWrite:
		return e.todoWrite(call)
	default:
		return errorResult(call, "unknown tool: "+call.Name)
	}
}

func (e *LocalExecutor) readFile(call ToolCall) *ToolResult {
	path, err := stringArg(call.Args, "path")
	if err != nil {
		return errorResult(call, err.Error())
	}
	data, err := e.ws.ReadFile(path)
	if err != nil {
		return errorResult(call, err.Error())
	}
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: string(data)}
}

func (e *LocalExecutor) writeFile(call ToolCall) *ToolResult {
	path, err := stringArg(call.Args, "path")
	if err != nil {
		return errorResult(call, err.Error())
	}
	content, err := stringArg(call.Args, "content")
	if err != nil {
		return errorResult(call, err.Error())
	}
	if err := e.ws.WriteFileString(path, content); err != nil {
		return errorResult(call, err.Error())
	}
	return &ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
	}
}

func (e *LocalExecutor) editFile(call ToolCall) *ToolResult {
	path, err := stringArg(call.Args, "path")
	if err != nil {
		return errorResult(call, err.Error())
	}
	oldStr, err := stringArg(call.Args, "old_string")
	if err != nil {
		return errorResult(call, err.Error())
	}
	newStr, err := stringArg(call.Args, "new_string")
	if err != nil {
		return errorResult(call, err.Error())
	}

	data, err := e.ws.ReadFile(path)
	if err != nil {
		return errorResult(call, err.Error())
	}
	content := string(data)
	count := strings.Count(content, oldStr)
	if count == 0 {
		return errorResult(call, fmt.Sprintf("old_string not found in %s", path))
	}
	if count > 1 {
		return errorResult(call, fmt.Sprintf("old_string occurs %d times in %s; provide more context to make it unique", count, path))
	}
	if err := e.ws.WriteFileString(path, strings.Replace(content, oldStr, newStr, 1)); err != nil {
		return errorResult(call, err.Error())
	}
	return &ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: fmt.Sprintf("Edited %s", path),
	}
}

func (e *LocalExecutor) listDir(call ToolCall) *ToolResult {
	path, err := stringArg(call.Args, "path")
	if err != nil {
		return errorResult(call, err.Error())
	}
	names, err := e.ws.ListDir(path)
	if err != nil {
		return errorResult(call, err.Error())
	}
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: strings.Join(names, "\n")}
}

func (e *LocalExecutor) todoWrite(call ToolCall) *ToolResult {
	todos, err := parseTodos(call.Args)
	if err != nil {
		return errorResult(call, err.Error())
	}
	completed := 0
	for _, item := range todos {
		if item.Status == TodoStatusCompleted {
			completed++
		}
	}
	return &ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: fmt.Sprintf("Todo list updated: %d items, %d completed", len(todos), completed),
	}
}

// ListTools describes the built-in tools.
func (e *LocalExecutor) ListTools(_ context.Context) []llm.ToolDef {
	pathProp := map[string]any{"type": "string", "description": "Workspace-relative or absolute path inside the workspace"}
	return []llm.ToolDef{
		{
			Name:        ToolReadFile,
			Description: "Read a file from the workspace",
			InputSchema: objectSchema(map[string]any{"path": pathProp}, "path"),
		},
		{
			Name:        ToolWriteFile,
			Description: "Write a file in the workspace, creating parent directories",
			InputSchema: objectSchema(map[string]any{
				"path":    pathProp,
				"content": map[string]any{"type": "string", "description": "Full file content"},
			}, "path", "content"),
		},
		{
			Name:        ToolEditFile,
			Description: "Replace a unique string in a workspace file",
			InputSchema: objectSchema(map[string]any{
				"path":       pathProp,
				"old_string": map[string]any{"type": "string", "description": "Exact text to replace; must occur exactly once"},
				"new_string": map[string]any{"type": "string", "description": "Replacement text"},
			}, "path", "old_string", "new_string"),
		},
		{
			Name:        ToolListDir,
			Description: "List the entries of a workspace directory",
			InputSchema: objectSchema(map[string]any{"path": pathProp}, "path"),
		},
		{
			Name:        ToolTodoWrite,
			Description: "Replace the working todo list with a new one",
			InputSchema: objectSchema(map[string]any{
				"todos": map[string]any{
					"type":        "array",
					"description": "Full todo list; replaces the previous list",
					"items": objectSchema(map[string]any{
						"content": map[string]any{"type": "string", "description": "What the step does"},
						"status":  map[string]any{"type": "string", "enum": []string{TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted}},
					}, "content", "status"),
				},
			}, "todos"),
		},
	}
}

// AutoApproved allows tools without side effects outside the event
// stream to run without a human decision.
func (e *LocalExecutor) AutoApproved(name string) bool {
	return name == ToolReadFile || name == ToolListDir || name == ToolTodoWrite
}

// Close implements ToolExecutor.
func (e *LocalExecutor) Close() error { return nil }

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
