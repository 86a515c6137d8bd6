package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFiles(t *testing.T, dataagentYAML, providersYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataagent.yaml"), []byte(dataagentYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(providersYAML), 0o600))
	return dir
}

const minimalProviders = `
llm_providers:
  default:
    type: openai
    model: gpt-4o
    api_key_env: OPENAI_API_KEY
`

func TestInitializeAppliesDefaults(t *testing.T) {
	dir := writeConfigFiles(t, "", minimalProviders)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ConfigDir())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./workspaces", cfg.Workspace.Root)
	assert.Equal(t, 20, cfg.Agent.MaxRounds)
	assert.Equal(t, 5*time.Minute, cfg.HITL.ApprovalTimeout)
	assert.Equal(t, 10, cfg.MCP.MaxConnectionsPerUser)
	assert.True(t, cfg.Masking.Enabled)
	assert.Equal(t, 1, cfg.Stats().LLMProviders)
}

func TestInitializeUserOverrides(t *testing.T) {
	dir := writeConfigFiles(t, `
server:
  port: 9090
  max_connections: 2
workspace:
  max_files: 5
hitl:
  approval_timeout: 30s
agent:
  default_provider: default
`, minimalProviders)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.MaxConnections)
	assert.Equal(t, 5, cfg.Workspace.MaxFiles)
	// Unset fields keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, DefaultWorkspaceConfig().MaxSizeBytes, cfg.Workspace.MaxSizeBytes)
	assert.Equal(t, 30*time.Second, cfg.HITL.ApprovalTimeout)

	name, provider, err := cfg.DefaultLLMProvider()
	require.NoError(t, err)
	assert.Equal(t, "default", name)
	assert.Equal(t, "gpt-4o", provider.Model)
}

func TestInitializeMissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataagent.yaml"), []byte(""), 0o600))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "llm-providers.yaml", loadErr.File)
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := writeConfigFiles(t, "server: [not a mapping", minimalProviders)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DATAAGENT_MODEL", "llama-3.1-70b")

	dir := writeConfigFiles(t, "", `
llm_providers:
  local:
    type: openai_compatible
    model: "{{.TEST_DATAAGENT_MODEL}}"
    base_url: http://localhost:11434/v1
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	provider, err := cfg.GetLLMProvider("local")
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-70b", provider.Model)
}

func TestDefaultLLMProviderSoleFallback(t *testing.T) {
	dir := writeConfigFiles(t, "", minimalProviders)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	name, _, err := cfg.DefaultLLMProvider()
	require.NoError(t, err)
	assert.Equal(t, "default", name)
}
