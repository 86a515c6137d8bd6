package mcp

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// NewTestPool creates a pool whose transport factory is replaced, so
// tests can wire in-memory MCP servers without spawning processes.
func NewTestPool(cfg *config.MCPPoolConfig, factory func(*models.MCPServerDefinition) (mcpsdk.Transport, error)) *Pool {
	p := NewPool(cfg)
	p.newTransport = factory
	return p
}
