package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/mcp"
)

// Masker redacts sensitive data from a tool result before it reaches the
// model or the event stream. serverName selects per-server patterns.
type Masker interface {
	MaskToolResult(content, serverName string) string
}

// MCPExecutor bridges the tool interface onto one user's MCP connection
// pool. Tool names are exposed in the "server__tool" form.
type MCPExecutor struct {
	pool   *mcp.Pool
	userID string
	masker Masker
	logger *slog.Logger
}

// NewMCPExecutor creates the bridge for a user. masker may be nil.
func NewMCPExecutor(pool *mcp.Pool, userID string, masker Masker) *MCPExecutor {
	return &MCPExecutor{
		pool:   pool,
		userID: userID,
		masker: masker,
		logger: slog.Default(),
	}
}

// Execute routes the call to the owning server and flattens the result.
func (e *MCPExecutor) Execute(ctx context.Context, call ToolCall) *ToolResult {
	server, tool, err := mcp.SplitToolName(mcp.NormalizeToolName(call.Name))
	if err != nil {
		return errorResult(call, err.Error())
	}

	result, err := e.pool.CallTool(ctx, e.userID, server, tool, call.Args)
	if err != nil {
		return errorResult(call, fmt.Sprintf("MCP tool execution failed: %s", err))
	}

	content := extractTextContent(result)
	if e.masker != nil {
		content = e.masker.MaskToolResult(content, server)
	}
	return &ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
		IsError: result.IsError,
	}
}

// ListTools returns every tool of the user's healthy connections, names
// prefixed with their server.
func (e *MCPExecutor) ListTools(_ context.Context) []llm.ToolDef {
	descriptors := e.pool.GetTools(e.userID)
	defs := make([]llm.ToolDef, 0, len(descriptors))
	for _, d := range descriptors {
		defs = append(defs, llm.ToolDef{
			Name:        mcp.JoinToolName(d.Server, d.Tool.Name),
			Description: d.Tool.Description,
			InputSchema: schemaToMap(d.Tool.InputSchema),
		})
	}
	return defs
}

// AutoApproved consults the server's autoApprove list.
func (e *MCPExecutor) AutoApproved(name string) bool {
	server, tool, err := mcp.SplitToolName(mcp.NormalizeToolName(name))
	if err != nil {
		return false
	}
	return e.pool.AutoApproved(e.userID, server, tool)
}

// Close implements ToolExecutor. The pool outlives individual executors,
// so this is a no-op; connections are torn down by the runtime.
func (e *MCPExecutor) Close() error { return nil }

// extractTextContent concatenates the TextContent items of an MCP tool
// result. Non-text content (images, embedded resources) is skipped.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaToMap converts the SDK's schema representation to the generic
// map form the backend request encoder expects.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
