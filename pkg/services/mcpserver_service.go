package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/ent/mcpserver"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/google/uuid"
)

// MCPServerService manages per-user MCP server configurations
type MCPServerService struct {
	client *ent.Client
}

// NewMCPServerService creates a new MCPServerService
func NewMCPServerService(client *ent.Client) *MCPServerService {
	return &MCPServerService{client: client}
}

// UpsertServer creates or replaces a user's MCP server configuration.
// The definition is validated before it is persisted.
func (s *MCPServerService) UpsertServer(ctx context.Context, userID, serverName string, def models.MCPServerDefinition) (*ent.MCPServer, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if serverName == "" {
		return nil, NewValidationError("server_name", "required")
	}
	if err := def.Validate(); err != nil {
		return nil, NewValidationError("config", err.Error())
	}

	config, err := def.ToMap()
	if err != nil {
		return nil, err
	}

	existing, err := s.client.MCPServer.Query().
		Where(
			mcpserver.UserIDEQ(userID),
			mcpserver.ServerNameEQ(serverName),
		).
		Only(ctx)
	switch {
	case err == nil:
		updated, err := existing.Update().
			SetConfig(config).
			SetEnabled(!def.Disabled).
			SetUpdatedAt(time.Now()).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to update MCP server: %w", err)
		}
		return updated, nil
	case ent.IsNotFound(err):
		created, err := s.client.MCPServer.Create().
			SetID(uuid.New().String()).
			SetUserID(userID).
			SetServerName(serverName).
			SetConfig(config).
			SetEnabled(!def.Disabled).
			Save(ctx)
		if err != nil {
			if ent.IsConstraintError(err) {
				return nil, ErrAlreadyExists
			}
			return nil, fmt.Errorf("failed to create MCP server: %w", err)
		}
		return created, nil
	default:
		return nil, fmt.Errorf("failed to query MCP server: %w", err)
	}
}

// GetServer retrieves one of a user's MCP server configurations by name
func (s *MCPServerService) GetServer(ctx context.Context, userID, serverName string) (*ent.MCPServer, error) {
	srv, err := s.client.MCPServer.Query().
		Where(
			mcpserver.UserIDEQ(userID),
			mcpserver.ServerNameEQ(serverName),
		).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get MCP server: %w", err)
	}
	return srv, nil
}

// ListServers lists a user's MCP server configurations by name
func (s *MCPServerService) ListServers(ctx context.Context, userID string) ([]*ent.MCPServer, error) {
	servers, err := s.client.MCPServer.Query().
		Where(mcpserver.UserIDEQ(userID)).
		Order(ent.Asc(mcpserver.FieldServerName)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP servers: %w", err)
	}
	return servers, nil
}

// DeleteServer removes a user's MCP server configuration
func (s *MCPServerService) DeleteServer(ctx context.Context, userID, serverName string) error {
	n, err := s.client.MCPServer.Delete().
		Where(
			mcpserver.UserIDEQ(userID),
			mcpserver.ServerNameEQ(serverName),
		).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete MCP server: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled toggles a server without touching its configuration
func (s *MCPServerService) SetEnabled(ctx context.Context, userID, serverName string, enabled bool) (*ent.MCPServer, error) {
	srv, err := s.GetServer(ctx, userID, serverName)
	if err != nil {
		return nil, err
	}
	updated, err := srv.Update().
		SetEnabled(enabled).
		SetUpdatedAt(time.Now()).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle MCP server: %w", err)
	}
	return updated, nil
}

// ServersFile assembles the user's enabled server configurations in the
// persisted mcp.json shape consumed by the connection pool.
func (s *MCPServerService) ServersFile(ctx context.Context, userID string) (*models.MCPServersFile, error) {
	servers, err := s.ListServers(ctx, userID)
	if err != nil {
		return nil, err
	}

	file := &models.MCPServersFile{MCPServers: map[string]models.MCPServerDefinition{}}
	for _, srv := range servers {
		if !srv.Enabled {
			continue
		}
		def, err := models.DefinitionFromMap(srv.Config)
		if err != nil {
			return nil, fmt.Errorf("corrupt config for server %s: %w", srv.ServerName, err)
		}
		file.MCPServers[srv.ServerName] = def
	}

	return file, nil
}

