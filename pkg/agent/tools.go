// Package agent drives agent executions: it streams model output,
// assembles tool calls, runs them through local and MCP executors, and
// emits the resulting event stream.
package agent

import (
	"context"
	"strings"

	"github.com/dataagent-io/dataagent/pkg/llm"
)

// ToolCall is a fully-assembled tool invocation from the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
	// RawArgs is the original JSON arguments string, kept for the
	// conversation history sent back to the model.
	RawArgs string
}

// ToolResult is the outcome of executing a tool call. Execution failures
// are carried as IsError results rather than Go errors, so the model
// sees them as tool output (MCP convention).
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

func errorResult(call ToolCall, msg string) *ToolResult {
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: msg, IsError: true}
}

// ToolExecutor runs fully-assembled tool calls and advertises the tools
// it can run.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) *ToolResult
	ListTools(ctx context.Context) []llm.ToolDef

	// AutoApproved reports whether the named tool may run without a
	// human decision.
	AutoApproved(name string) bool

	Close() error
}

// CompositeExecutor routes calls between the local workspace tools and
// the MCP bridge. MCP tool names carry the "server__tool" separator;
// local tool names never do.
type CompositeExecutor struct {
	Local ToolExecutor
	MCP   ToolExecutor
}

func (c *CompositeExecutor) route(name string) ToolExecutor {
	if strings.Contains(name, "__") {
		return c.MCP
	}
	return c.Local
}

// Execute dispatches the call to the owning executor.
func (c *CompositeExecutor) Execute(ctx context.Context, call ToolCall) *ToolResult {
	exec := c.route(call.Name)
	if exec == nil {
		return errorResult(call, "unknown tool: "+call.Name)
	}
	return exec.Execute(ctx, call)
}

// ListTools returns local tools followed by MCP tools.
func (c *CompositeExecutor) ListTools(ctx context.Context) []llm.ToolDef {
	var defs []llm.ToolDef
	if c.Local != nil {
		defs = append(defs, c.Local.ListTools(ctx)...)
	}
	if c.MCP != nil {
		defs = append(defs, c.MCP.ListTools(ctx)...)
	}
	return defs
}

// AutoApproved defers to the owning executor.
func (c *CompositeExecutor) AutoApproved(name string) bool {
	exec := c.route(name)
	return exec != nil && exec.AutoApproved(name)
}

// Close closes both executors, returning the first error.
func (c *CompositeExecutor) Close() error {
	var first error
	for _, exec := range []ToolExecutor{c.Local, c.MCP} {
		if exec == nil {
			continue
		}
		if err := exec.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
