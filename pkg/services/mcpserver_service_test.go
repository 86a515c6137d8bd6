package services

import (
	"context"
	"testing"

	"github.com/dataagent-io/dataagent/pkg/models"
	testdb "github.com/dataagent-io/dataagent/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMCPFixture(t *testing.T) *MCPServerService {
	t.Helper()
	client := testdb.NewTestClient(t)
	users := NewUserService(client.Client)
	seedUser(t, users, "alice")
	seedUser(t, users, "bob")
	return NewMCPServerService(client.Client)
}

func stdioDef(command string) models.MCPServerDefinition {
	return models.MCPServerDefinition{
		Command: command,
		Args:    []string{"--stdio"},
	}
}

func TestMCPServerService_UpsertServer(t *testing.T) {
	service := newMCPFixture(t)
	ctx := context.Background()

	t.Run("creates then updates", func(t *testing.T) {
		created, err := service.UpsertServer(ctx, "alice", "filesystem", stdioDef("mcp-fs"))
		require.NoError(t, err)
		assert.Equal(t, "filesystem", created.ServerName)
		assert.True(t, created.Enabled)
		assert.Equal(t, "mcp-fs", created.Config["command"])

		updated, err := service.UpsertServer(ctx, "alice", "filesystem", stdioDef("mcp-fs-v2"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "mcp-fs-v2", updated.Config["command"])
	})

	t.Run("disabled definition lands disabled", func(t *testing.T) {
		def := stdioDef("mcp-db")
		def.Disabled = true
		created, err := service.UpsertServer(ctx, "alice", "db", def)
		require.NoError(t, err)
		assert.False(t, created.Enabled)
	})

	t.Run("rejects invalid definitions", func(t *testing.T) {
		_, err := service.UpsertServer(ctx, "alice", "broken", models.MCPServerDefinition{})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		_, err = service.UpsertServer(ctx, "alice", "broken", models.MCPServerDefinition{
			Command: "x",
			URL:     "http://localhost:9000",
		})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("validates identifiers", func(t *testing.T) {
		_, err := service.UpsertServer(ctx, "", "filesystem", stdioDef("mcp-fs"))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		_, err = service.UpsertServer(ctx, "alice", "", stdioDef("mcp-fs"))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})
}

func TestMCPServerService_ListAndDelete(t *testing.T) {
	service := newMCPFixture(t)
	ctx := context.Background()

	_, err := service.UpsertServer(ctx, "alice", "filesystem", stdioDef("mcp-fs"))
	require.NoError(t, err)
	_, err = service.UpsertServer(ctx, "alice", "github", models.MCPServerDefinition{
		URL:       "http://localhost:9000/sse",
		Transport: models.MCPTransportSSE,
	})
	require.NoError(t, err)
	_, err = service.UpsertServer(ctx, "bob", "filesystem", stdioDef("mcp-fs"))
	require.NoError(t, err)

	t.Run("lists only the user's servers", func(t *testing.T) {
		servers, err := service.ListServers(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "filesystem", servers[0].ServerName)
		assert.Equal(t, "github", servers[1].ServerName)
	})

	t.Run("get by name", func(t *testing.T) {
		srv, err := service.GetServer(ctx, "alice", "github")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000/sse", srv.Config["url"])

		_, err = service.GetServer(ctx, "bob", "github")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, service.DeleteServer(ctx, "alice", "github"))
		_, err := service.GetServer(ctx, "alice", "github")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, service.DeleteServer(ctx, "alice", "github"), ErrNotFound)
	})
}

func TestMCPServerService_ServersFile(t *testing.T) {
	service := newMCPFixture(t)
	ctx := context.Background()

	_, err := service.UpsertServer(ctx, "alice", "filesystem", stdioDef("mcp-fs"))
	require.NoError(t, err)
	_, err = service.UpsertServer(ctx, "alice", "github", models.MCPServerDefinition{
		URL:       "http://localhost:9000/sse",
		Transport: models.MCPTransportSSE,
	})
	require.NoError(t, err)

	_, err = service.SetEnabled(ctx, "alice", "github", false)
	require.NoError(t, err)

	file, err := service.ServersFile(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, file.MCPServers, 1)

	def, ok := file.MCPServers["filesystem"]
	require.True(t, ok)
	assert.Equal(t, "mcp-fs", def.Command)
	assert.True(t, def.IsStdio())
}

func TestUserService_Roles(t *testing.T) {
	client := testdb.NewTestClient(t)
	service := NewUserService(client.Client)
	ctx := context.Background()

	t.Run("ensure is idempotent", func(t *testing.T) {
		first, err := service.EnsureUser(ctx, "carol")
		require.NoError(t, err)
		second, err := service.EnsureUser(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("new users are not admins", func(t *testing.T) {
		_, err := service.EnsureUser(ctx, "dave")
		require.NoError(t, err)

		admin, err := service.IsAdmin(ctx, "dave")
		require.NoError(t, err)
		assert.False(t, admin)
	})

	t.Run("unknown users are not admins", func(t *testing.T) {
		admin, err := service.IsAdmin(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, admin)
	})

	t.Run("promote to admin", func(t *testing.T) {
		_, err := service.EnsureUser(ctx, "root-user")
		require.NoError(t, err)

		_, err = service.SetRole(ctx, "root-user", "admin")
		require.NoError(t, err)

		admin, err := service.IsAdmin(ctx, "root-user")
		require.NoError(t, err)
		assert.True(t, admin)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := service.EnsureUser(ctx, "")
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		_, err = service.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
