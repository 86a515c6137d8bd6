// Package mcp manages per-user MCP (Model Context Protocol) connection
// pools: opening tool-server clients, capturing tool lists, and routing
// tool calls, with strict per-user isolation.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/version"
)

// OperationTimeout bounds a single tool call or tool listing.
const OperationTimeout = 60 * time.Second

// Connection is one user's link to one tool server.
type Connection struct {
	ServerName  string
	Definition  *models.MCPServerDefinition
	Connected   bool
	Err         string
	Tools       []*mcpsdk.Tool
	AutoApprove []string

	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
}

// ServerStatus is the per-server view returned by ConnectionStatus.
type ServerStatus struct {
	Connected  bool   `json:"connected"`
	ToolsCount int    `json:"tools_count"`
	Error      string `json:"error,omitempty"`
}

// ToolDescriptor pairs a tool with the server that provides it.
type ToolDescriptor struct {
	Server string
	Tool   *mcpsdk.Tool
}

// Pool holds per-user MCP connections under a single lock, bounded by
// per-user and global caps. Isolation invariant: a user's inner map only
// ever holds that user's connections.
type Pool struct {
	cfg    *config.MCPPoolConfig
	logger *slog.Logger

	mu          sync.Mutex
	connections map[string]map[string]*Connection // userID → serverName → conn
	total       int                               // live (connected) count across users

	// newTransport is swapped in tests to wire in-memory servers.
	newTransport func(*models.MCPServerDefinition) (mcpsdk.Transport, error)
}

// NewPool creates an empty pool.
func NewPool(cfg *config.MCPPoolConfig) *Pool {
	return &Pool{
		cfg:          cfg,
		logger:       slog.Default(),
		connections:  make(map[string]map[string]*Connection),
		newTransport: createTransport,
	}
}

// Connect opens a connection for each enabled server not already in the
// user's map, stopping at the per-user or global cap. Failures are
// recorded on the connection (connected=false) and never abort the
// remaining servers. Returns the number of servers newly connected.
func (p *Pool) Connect(ctx context.Context, userID string, servers map[string]*models.MCPServerDefinition) int {
	// Deterministic connect order.
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	p.mu.Lock()
	defer p.mu.Unlock()

	userConns := p.connections[userID]
	if userConns == nil {
		userConns = make(map[string]*Connection)
		p.connections[userID] = userConns
	}

	connected := 0
	for _, name := range names {
		def := servers[name]
		if def.Disabled {
			continue
		}
		if _, exists := userConns[name]; exists {
			continue
		}
		if len(userConns) >= p.cfg.MaxConnectionsPerUser {
			p.logger.Warn("Per-user MCP connection cap reached",
				"user_id", userID, "cap", p.cfg.MaxConnectionsPerUser)
			break
		}
		if p.total >= p.cfg.MaxTotalConnections {
			p.logger.Warn("Global MCP connection cap reached",
				"cap", p.cfg.MaxTotalConnections)
			break
		}

		conn := p.open(ctx, userID, name, def)
		userConns[name] = conn
		if conn.Connected {
			p.total++
			connected++
		}
	}

	if len(userConns) == 0 {
		delete(p.connections, userID)
	}
	return connected
}

// open dials one server and captures its initial tool list. Errors are
// recorded on the returned connection, never returned.
func (p *Pool) open(ctx context.Context, userID, name string, def *models.MCPServerDefinition) *Connection {
	conn := &Connection{
		ServerName:  name,
		Definition:  def,
		AutoApprove: def.AutoApprove,
	}

	transport, err := p.newTransport(def)
	if err != nil {
		conn.Err = err.Error()
		p.logger.Warn("MCP transport creation failed",
			"user_id", userID, "server", name, "error", err)
		return conn
	}

	dialCtx := ctx
	if p.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		defer cancel()
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(dialCtx, transport, nil)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		conn.Err = err.Error()
		p.logger.Warn("MCP server connection failed",
			"user_id", userID, "server", name, "error", err)
		return conn
	}

	tools, err := session.ListTools(dialCtx, nil)
	if err != nil {
		_ = session.Close()
		conn.Err = fmt.Sprintf("failed to list tools: %v", err)
		p.logger.Warn("MCP tool listing failed",
			"user_id", userID, "server", name, "error", err)
		return conn
	}

	conn.client = client
	conn.session = session
	conn.Connected = true
	if tools.Tools != nil {
		conn.Tools = tools.Tools
	} else {
		conn.Tools = []*mcpsdk.Tool{}
	}

	p.logger.Info("MCP server connected",
		"user_id", userID, "server", name, "tools", len(conn.Tools))
	return conn
}

// Disconnect closes one of the user's connections. Safe to call when
// nothing is mapped.
func (p *Pool) Disconnect(userID, serverName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnectLocked(userID, serverName)
}

// DisconnectUser closes all of the user's connections.
func (p *Pool) DisconnectUser(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name := range p.connections[userID] {
		p.disconnectLocked(userID, name)
	}
}

// disconnectLocked removes one connection. Caller holds p.mu.
func (p *Pool) disconnectLocked(userID, serverName string) {
	userConns := p.connections[userID]
	conn, exists := userConns[serverName]
	if !exists {
		return
	}
	if conn.session != nil {
		_ = conn.session.Close()
	}
	if conn.Connected {
		p.total--
	}
	delete(userConns, serverName)
	if len(userConns) == 0 {
		delete(p.connections, userID)
	}
	p.logger.Info("MCP server disconnected", "user_id", userID, "server", serverName)
}

// GetTools returns the flat tool list across the user's connected
// servers, and only that user's.
func (p *Pool) GetTools(userID string) []ToolDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []ToolDescriptor
	names := make([]string, 0, len(p.connections[userID]))
	for name := range p.connections[userID] {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		conn := p.connections[userID][name]
		if !conn.Connected {
			continue
		}
		for _, tool := range conn.Tools {
			out = append(out, ToolDescriptor{Server: name, Tool: tool})
		}
	}
	return out
}

// ConnectionStatus reports per-server connection state for one user.
func (p *Pool) ConnectionStatus(userID string) map[string]ServerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]ServerStatus, len(p.connections[userID]))
	for name, conn := range p.connections[userID] {
		out[name] = ServerStatus{
			Connected:  conn.Connected,
			ToolsCount: len(conn.Tools),
			Error:      conn.Err,
		}
	}
	return out
}

// HealthCheck reports server_name → healthy for one user. Shallow check:
// connected with a live client, no probe.
func (p *Pool) HealthCheck(userID string) map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]bool, len(p.connections[userID]))
	for name, conn := range p.connections[userID] {
		out[name] = conn.Connected && conn.client != nil
	}
	return out
}

// AutoApproved reports whether the named tool on the named server is on
// the user's auto-approve list.
func (p *Pool) AutoApproved(userID, serverName, toolName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, exists := p.connections[userID][serverName]
	if !exists {
		return false
	}
	for _, name := range conn.AutoApprove {
		if name == toolName {
			return true
		}
	}
	return false
}

// CallTool executes a tool on one of the user's connected servers.
func (p *Pool) CallTool(ctx context.Context, userID, serverName, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	p.mu.Lock()
	conn, exists := p.connections[userID][serverName]
	if !exists || !conn.Connected {
		p.mu.Unlock()
		return nil, fmt.Errorf("no connection to server %q for user %q", serverName, userID)
	}
	session := conn.session
	p.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	result, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %s.%s failed: %w", serverName, toolName, err)
	}
	return result, nil
}

// TotalConnections returns the live connection count across all users.
func (p *Pool) TotalConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Close disconnects every user.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for userID, userConns := range p.connections {
		for name, conn := range userConns {
			if conn.session != nil {
				_ = conn.session.Close()
			}
			if conn.Connected {
				p.total--
			}
			delete(userConns, name)
		}
		delete(p.connections, userID)
	}
}
