package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// MCPServerResponse is the wire form of one configured MCP server.
type MCPServerResponse struct {
	Name      string                     `json:"name"`
	Enabled   bool                       `json:"enabled"`
	Config    models.MCPServerDefinition `json:"config"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// MCPServerListResponse is the body of GET /users/:user_id/mcp-servers.
type MCPServerListResponse struct {
	UserID  string              `json:"user_id"`
	Servers []MCPServerResponse `json:"servers"`
}

func mcpServerToResponse(srv *ent.MCPServer) (MCPServerResponse, error) {
	def, err := models.DefinitionFromMap(srv.Config)
	if err != nil {
		return MCPServerResponse{}, err
	}
	return MCPServerResponse{
		Name:      srv.ServerName,
		Enabled:   srv.Enabled,
		Config:    def,
		UpdatedAt: srv.UpdatedAt,
	}, nil
}

// mcpTarget authorizes the request against the path's user and returns
// (userID, serverName).
func (s *Server) mcpTarget(c *echo.Context) (string, string, error) {
	userID := c.Param("user_id")
	if userID == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	if err := s.requireUserAccess(c, userID); err != nil {
		return "", "", err
	}
	return userID, c.Param("name"), nil
}

// listMCPServersHandler handles GET /api/v1/users/:user_id/mcp-servers.
func (s *Server) listMCPServersHandler(c *echo.Context) error {
	userID, _, err := s.mcpTarget(c)
	if err != nil {
		return err
	}

	servers, err := s.mcpService.ListServers(c.Request().Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}

	out := make([]MCPServerResponse, 0, len(servers))
	for _, srv := range servers {
		resp, err := mcpServerToResponse(srv)
		if err != nil {
			return mapServiceError(err)
		}
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, &MCPServerListResponse{UserID: userID, Servers: out})
}

// getMCPServerHandler handles GET /api/v1/users/:user_id/mcp-servers/:name.
func (s *Server) getMCPServerHandler(c *echo.Context) error {
	userID, name, err := s.mcpTarget(c)
	if err != nil {
		return err
	}

	srv, err := s.mcpService.GetServer(c.Request().Context(), userID, name)
	if err != nil {
		return mapServiceError(err)
	}
	resp, err := mcpServerToResponse(srv)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// putMCPServerHandler handles PUT /api/v1/users/:user_id/mcp-servers/:name.
// The body is one MCP server definition; create and update share the route.
func (s *Server) putMCPServerHandler(c *echo.Context) error {
	userID, name, err := s.mcpTarget(c)
	if err != nil {
		return err
	}

	var def models.MCPServerDefinition
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	srv, err := s.mcpService.UpsertServer(c.Request().Context(), userID, name, def)
	if err != nil {
		return mapServiceError(err)
	}
	resp, err := mcpServerToResponse(srv)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// deleteMCPServerHandler handles DELETE /api/v1/users/:user_id/mcp-servers/:name.
func (s *Server) deleteMCPServerHandler(c *echo.Context) error {
	userID, name, err := s.mcpTarget(c)
	if err != nil {
		return err
	}
	if err := s.mcpService.DeleteServer(c.Request().Context(), userID, name); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetEnabledRequest is the body of POST .../mcp-servers/:name/enabled.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// setMCPServerEnabledHandler toggles a server without touching its config.
func (s *Server) setMCPServerEnabledHandler(c *echo.Context) error {
	userID, name, err := s.mcpTarget(c)
	if err != nil {
		return err
	}

	var req SetEnabledRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	srv, err := s.mcpService.SetEnabled(c.Request().Context(), userID, name, req.Enabled)
	if err != nil {
		return mapServiceError(err)
	}
	resp, err := mcpServerToResponse(srv)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
