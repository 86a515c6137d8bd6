package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// emptySchema is a minimal valid JSON Schema for test tools.
var emptySchema = &jsonschema.Schema{Type: "object"}

// startTestServer creates an in-memory MCP server with the given tools
// and returns the client-side transport.
func startTestServer(t *testing.T, name string, tools ...string) *mcpsdk.InMemoryTransport {
	t.Helper()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name: name, Version: "test",
	}, nil)

	for _, toolName := range tools {
		server.AddTool(&mcpsdk.Tool{
			Name:        toolName,
			Description: "test tool: " + toolName,
			InputSchema: emptySchema,
		}, func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "ok:" + req.Params.Name}},
			}, nil
		})
	}

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	go func() {
		_ = server.Run(context.Background(), serverTransport)
	}()
	return clientTransport
}

// newFakePool builds a pool whose transport factory serves in-memory
// servers by name. Definitions with a "fail" command always error.
func newFakePool(t *testing.T, cfg *config.MCPPoolConfig, serverTools map[string][]string) *Pool {
	t.Helper()
	return NewTestPool(cfg, func(def *models.MCPServerDefinition) (mcpsdk.Transport, error) {
		if def.Command == "fail" {
			return nil, fmt.Errorf("no such command: %s", def.Args[0])
		}
		tools, ok := serverTools[def.Command]
		if !ok {
			return nil, fmt.Errorf("unknown test server: %s", def.Command)
		}
		return startTestServer(t, def.Command, tools...), nil
	})
}

func defs(names ...string) map[string]*models.MCPServerDefinition {
	out := make(map[string]*models.MCPServerDefinition, len(names))
	for _, n := range names {
		out[n] = &models.MCPServerDefinition{Command: n}
	}
	return out
}

func TestPoolConnectAndGetTools(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{
		"github": {"create_issue", "list_issues"},
		"files":  {"search"},
	})
	defer pool.Close()

	connected := pool.Connect(context.Background(), "alice", defs("github", "files"))
	assert.Equal(t, 2, connected)
	assert.Equal(t, 2, pool.TotalConnections())

	tools := pool.GetTools("alice")
	require.Len(t, tools, 3)
	// Deterministic order: files before github, tools per server order.
	assert.Equal(t, "files", tools[0].Server)
	assert.Equal(t, "search", tools[0].Tool.Name)
	assert.Equal(t, "github", tools[1].Server)
}

func TestPoolConnectIdempotent(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{"github": {"t"}})
	defer pool.Close()

	assert.Equal(t, 1, pool.Connect(context.Background(), "alice", defs("github")))
	assert.Equal(t, 0, pool.Connect(context.Background(), "alice", defs("github")))
	assert.Equal(t, 1, pool.TotalConnections())
}

func TestPoolSkipsDisabledServers(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{"github": {"t"}})
	defer pool.Close()

	servers := defs("github")
	servers["github"].Disabled = true
	assert.Equal(t, 0, pool.Connect(context.Background(), "alice", servers))
	assert.Empty(t, pool.ConnectionStatus("alice"))
}

func TestPoolPerUserCap(t *testing.T) {
	cfg := DefaultTestPoolConfig()
	cfg.MaxConnectionsPerUser = 2
	pool := newFakePool(t, cfg, map[string][]string{
		"a": {"t"}, "b": {"t"}, "c": {"t"},
	})
	defer pool.Close()

	connected := pool.Connect(context.Background(), "alice", defs("a", "b", "c"))
	assert.Equal(t, 2, connected)
	assert.Len(t, pool.ConnectionStatus("alice"), 2)
}

func TestPoolGlobalCap(t *testing.T) {
	cfg := DefaultTestPoolConfig()
	cfg.MaxTotalConnections = 3
	pool := newFakePool(t, cfg, map[string][]string{
		"a": {"t"}, "b": {"t"}, "c": {"t"}, "d": {"t"},
	})
	defer pool.Close()

	assert.Equal(t, 2, pool.Connect(context.Background(), "alice", defs("a", "b")))
	assert.Equal(t, 1, pool.Connect(context.Background(), "bob", defs("c", "d")))
	assert.Equal(t, 3, pool.TotalConnections())
}

func TestPoolPartialFailure(t *testing.T) {
	// One healthy server, one whose command cannot be started.
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{"github": {"t"}})
	defer pool.Close()

	servers := defs("github")
	servers["broken"] = &models.MCPServerDefinition{Command: "fail", Args: []string{"nonexistent-mcp"}}

	connected := pool.Connect(context.Background(), "alice", servers)
	assert.Equal(t, 1, connected)
	// Failed connection does not count against the global total.
	assert.Equal(t, 1, pool.TotalConnections())

	status := pool.ConnectionStatus("alice")
	require.Len(t, status, 2)
	assert.True(t, status["github"].Connected)
	assert.False(t, status["broken"].Connected)
	assert.Contains(t, status["broken"].Error, "nonexistent-mcp")

	health := pool.HealthCheck("alice")
	assert.True(t, health["github"])
	assert.False(t, health["broken"])

	// Only the healthy server's tools are exposed.
	tools := pool.GetTools("alice")
	require.Len(t, tools, 1)
	assert.Equal(t, "github", tools[0].Server)
}

func TestPoolUserIsolation(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{
		"github": {"gh_tool"},
		"files":  {"fs_tool"},
	})
	defer pool.Close()

	pool.Connect(context.Background(), "alice", defs("github"))
	pool.Connect(context.Background(), "bob", defs("files"))

	aliceTools := pool.GetTools("alice")
	require.Len(t, aliceTools, 1)
	assert.Equal(t, "gh_tool", aliceTools[0].Tool.Name)

	bobTools := pool.GetTools("bob")
	require.Len(t, bobTools, 1)
	assert.Equal(t, "fs_tool", bobTools[0].Tool.Name)

	// Disconnecting alice never affects bob.
	pool.DisconnectUser("alice")
	assert.Empty(t, pool.GetTools("alice"))
	assert.Len(t, pool.GetTools("bob"), 1)
	assert.Equal(t, 1, pool.TotalConnections())
}

func TestPoolDisconnect(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{
		"a": {"t"}, "b": {"t"},
	})
	defer pool.Close()

	pool.Connect(context.Background(), "alice", defs("a", "b"))
	pool.Disconnect("alice", "a")
	assert.Len(t, pool.ConnectionStatus("alice"), 1)
	assert.Equal(t, 1, pool.TotalConnections())

	// Safe when nothing is mapped.
	pool.Disconnect("alice", "a")
	pool.Disconnect("nobody", "x")

	pool.Disconnect("alice", "b")
	assert.Empty(t, pool.ConnectionStatus("alice"))
	assert.Equal(t, 0, pool.TotalConnections())
}

func TestPoolCallTool(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{"github": {"create_issue"}})
	defer pool.Close()

	pool.Connect(context.Background(), "alice", defs("github"))

	result, err := pool.CallTool(context.Background(), "alice", "github", "create_issue", map[string]any{"title": "x"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Equal(t, "ok:create_issue", text.Text)

	// Another user cannot reach alice's connection.
	_, err = pool.CallTool(context.Background(), "bob", "github", "create_issue", nil)
	assert.Error(t, err)
}

func TestPoolAutoApproved(t *testing.T) {
	pool := newFakePool(t, DefaultTestPoolConfig(), map[string][]string{"github": {"create_issue"}})
	defer pool.Close()

	servers := defs("github")
	servers["github"].AutoApprove = []string{"create_issue"}
	pool.Connect(context.Background(), "alice", servers)

	assert.True(t, pool.AutoApproved("alice", "github", "create_issue"))
	assert.False(t, pool.AutoApproved("alice", "github", "delete_repo"))
	assert.False(t, pool.AutoApproved("bob", "github", "create_issue"))
}

// DefaultTestPoolConfig returns a pool config with roomy caps.
func DefaultTestPoolConfig() *config.MCPPoolConfig {
	return &config.MCPPoolConfig{
		MaxConnectionsPerUser: 10,
		MaxTotalConnections:   100,
	}
}
