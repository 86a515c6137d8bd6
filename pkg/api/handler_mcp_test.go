package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/ent/user"
	"github.com/dataagent-io/dataagent/pkg/services"
	testdb "github.com/dataagent-io/dataagent/test/database"
)

func newMCPTestServer(t *testing.T) *Server {
	t.Helper()
	client := testdb.NewTestClient(t)
	s := NewServer(ServerOptions{
		UserService: services.NewUserService(client.Client),
		MCPService:  services.NewMCPServerService(client.Client),
	})
	_, err := s.userService.EnsureUser(context.Background(), "alice")
	require.NoError(t, err)
	return s
}

func TestMCPServerHandlers_CRUD(t *testing.T) {
	s := newMCPTestServer(t)

	t.Run("put creates a server", func(t *testing.T) {
		rec := doRequest(s, http.MethodPut, "/api/v1/users/alice/mcp-servers/github",
			`{"command":"npx","args":["-y","@modelcontextprotocol/server-github"],"autoApprove":["search_issues"]}`,
			"alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp MCPServerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "github", resp.Name)
		assert.True(t, resp.Enabled)
		assert.Equal(t, "npx", resp.Config.Command)
	})

	t.Run("invalid definition is rejected", func(t *testing.T) {
		rec := doRequest(s, http.MethodPut, "/api/v1/users/alice/mcp-servers/broken",
			`{"command":"npx","url":"https://example.com/mcp"}`, "alice")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list and get", func(t *testing.T) {
		rec := doRequest(s, http.MethodPut, "/api/v1/users/alice/mcp-servers/grafana",
			`{"url":"https://grafana.example.com/mcp","transport":"streamable_http","disabled":true}`,
			"alice")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(s, http.MethodGet, "/api/v1/users/alice/mcp-servers", "", "alice")
		require.Equal(t, http.StatusOK, rec.Code)

		var list MCPServerListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Servers, 2)
		assert.Equal(t, "github", list.Servers[0].Name)
		assert.Equal(t, "grafana", list.Servers[1].Name)
		assert.False(t, list.Servers[1].Enabled)

		rec = doRequest(s, http.MethodGet, "/api/v1/users/alice/mcp-servers/grafana", "", "alice")
		require.Equal(t, http.StatusOK, rec.Code)
		var one MCPServerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
		assert.Equal(t, "streamable_http", one.Config.Transport)
	})

	t.Run("enable toggle", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/v1/users/alice/mcp-servers/grafana/enabled",
			`{"enabled":true}`, "alice")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp MCPServerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Enabled)
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(s, http.MethodDelete, "/api/v1/users/alice/mcp-servers/grafana", "", "alice")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doRequest(s, http.MethodGet, "/api/v1/users/alice/mcp-servers/grafana", "", "alice")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMCPServerHandlers_Authorization(t *testing.T) {
	s := newMCPTestServer(t)
	ctx := context.Background()

	_, err := s.userService.EnsureUser(ctx, "bob")
	require.NoError(t, err)

	t.Run("cross-user access is denied", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/users/alice/mcp-servers", "", "bob")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = doRequest(s, http.MethodPut, "/api/v1/users/alice/mcp-servers/evil",
			`{"command":"sh"}`, "bob")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin may manage any user", func(t *testing.T) {
		_, err := s.userService.EnsureUser(ctx, "root")
		require.NoError(t, err)
		_, err = s.userService.SetRole(ctx, "root", user.RoleAdmin)
		require.NoError(t, err)

		rec := doRequest(s, http.MethodPut, "/api/v1/users/alice/mcp-servers/audited",
			`{"command":"npx","args":["server-audited"]}`, "root")
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("anonymous requester is denied", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/users/alice/mcp-servers", "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
