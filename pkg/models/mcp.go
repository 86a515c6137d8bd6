package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// MCP transport identifiers for URL-based servers.
const (
	MCPTransportSSE            = "sse"
	MCPTransportStreamableHTTP = "streamable_http"
)

// MCPServerDefinition is the persisted shape of a single MCP server entry.
// Either Command (stdio) or URL (sse / streamable_http) is set, never both.
type MCPServerDefinition struct {
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	URL         string            `json:"url,omitempty"`
	Transport   string            `json:"transport,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Disabled    bool              `json:"disabled,omitempty"`
	AutoApprove []string          `json:"autoApprove,omitempty"`
}

// IsStdio reports whether the server is command-based.
func (d *MCPServerDefinition) IsStdio() bool {
	return d.Command != ""
}

// Validate checks that the definition names exactly one transport flavor.
func (d *MCPServerDefinition) Validate() error {
	if d.Command == "" && d.URL == "" {
		return fmt.Errorf("MCP server requires either command or url")
	}
	if d.Command != "" && d.URL != "" {
		return fmt.Errorf("MCP server cannot set both command and url")
	}
	if d.URL != "" {
		switch d.Transport {
		case "", MCPTransportSSE, MCPTransportStreamableHTTP:
		default:
			return fmt.Errorf("unsupported MCP transport: %s", d.Transport)
		}
	}
	return nil
}

// ToMap converts the definition into the generic map shape stored in
// the database config column.
func (d MCPServerDefinition) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal server definition: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server definition: %w", err)
	}
	return m, nil
}

// DefinitionFromMap is the inverse of ToMap.
func DefinitionFromMap(m map[string]any) (MCPServerDefinition, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return MCPServerDefinition{}, fmt.Errorf("failed to marshal server config: %w", err)
	}
	var def MCPServerDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return MCPServerDefinition{}, fmt.Errorf("failed to unmarshal server config: %w", err)
	}
	return def, nil
}

// MCPServersFile is the on-disk mcp.json representation. The outer key is
// "mcpServers" (bit-exact — external tooling greps for it).
type MCPServersFile struct {
	MCPServers map[string]MCPServerDefinition `json:"mcpServers"`
}

// LoadMCPServersFile reads and parses an mcp.json file.
// A missing file yields an empty (non-nil) server map.
func LoadMCPServersFile(path string) (*MCPServersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MCPServersFile{MCPServers: map[string]MCPServerDefinition{}}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var f MCPServersFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.MCPServers == nil {
		f.MCPServers = map[string]MCPServerDefinition{}
	}
	return &f, nil
}

// SaveMCPServersFile writes the mcp.json representation with stable
// indentation.
func SaveMCPServersFile(path string, f *MCPServersFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mcp servers: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
