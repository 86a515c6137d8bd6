package config

import "time"

// MCPPoolConfig bounds the per-user MCP connection pools.
type MCPPoolConfig struct {
	// MaxConnectionsPerUser caps live tool-server connections for a
	// single user.
	MaxConnectionsPerUser int `yaml:"max_connections_per_user"`

	// MaxTotalConnections caps live connections across all users.
	MaxTotalConnections int `yaml:"max_total_connections"`

	// ConnectTimeout bounds a single server connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultMCPPoolConfig returns the built-in MCP pool defaults.
func DefaultMCPPoolConfig() *MCPPoolConfig {
	return &MCPPoolConfig{
		MaxConnectionsPerUser: 10,
		MaxTotalConnections:   200,
		ConnectTimeout:        30 * time.Second,
	}
}
