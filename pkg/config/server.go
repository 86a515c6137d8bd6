package config

import "time"

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxConnections caps concurrent WebSocket connections. Connections
	// beyond the cap are refused at upgrade time.
	MaxConnections int `yaml:"max_connections"`

	// AllowedWSOrigins are additional Origin patterns accepted for the
	// WebSocket upgrade besides the server's own host.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`

	// ShutdownTimeout is the grace period for draining active
	// connections on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		MaxConnections:  200,
		ShutdownTimeout: 30 * time.Second,
	}
}
