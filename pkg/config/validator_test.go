package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Workspace: DefaultWorkspaceConfig(),
		Rules:     DefaultRulesConfig(),
		Agent:     DefaultAgentConfig(),
		HITL:      DefaultHITLConfig(),
		MCP:       DefaultMCPPoolConfig(),
		Retention: DefaultRetentionConfig(),
		Masking:   DefaultMaskingConfig(),
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"default": {Type: ProviderOpenAI, Model: "gpt-4o"},
		}),
	}
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, NewValidator(validConfig()).ValidateAll())
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *Config)
		contains string
	}{
		{
			name:     "port out of range",
			mutate:   func(cfg *Config) { cfg.Server.Port = 70000 },
			contains: "port",
		},
		{
			name:     "zero max connections",
			mutate:   func(cfg *Config) { cfg.Server.MaxConnections = 0 },
			contains: "max_connections",
		},
		{
			name:     "empty workspace root",
			mutate:   func(cfg *Config) { cfg.Workspace.Root = "" },
			contains: "root",
		},
		{
			name:     "file size above workspace size",
			mutate:   func(cfg *Config) { cfg.Workspace.MaxFileSizeBytes = cfg.Workspace.MaxSizeBytes + 1 },
			contains: "max_file_size_bytes",
		},
		{
			name:     "zero max rounds",
			mutate:   func(cfg *Config) { cfg.Agent.MaxRounds = 0 },
			contains: "max_rounds",
		},
		{
			name:     "unknown default provider",
			mutate:   func(cfg *Config) { cfg.Agent.DefaultProvider = "nope" },
			contains: "default_provider",
		},
		{
			name:     "non-positive approval timeout",
			mutate:   func(cfg *Config) { cfg.HITL.ApprovalTimeout = 0 },
			contains: "approval_timeout",
		},
		{
			name: "slack enabled without channel",
			mutate: func(cfg *Config) {
				cfg.HITL.Slack = &SlackConfig{Enabled: true, TokenEnv: "SLACK_BOT_TOKEN"}
			},
			contains: "slack.channel",
		},
		{
			name:     "total below per-user cap",
			mutate:   func(cfg *Config) { cfg.MCP.MaxTotalConnections = cfg.MCP.MaxConnectionsPerUser - 1 },
			contains: "max_total_connections",
		},
		{
			name: "invalid masking regex",
			mutate: func(cfg *Config) {
				cfg.Masking.CustomPatterns = []MaskingPattern{{Pattern: "[unclosed", Replacement: "X"}}
			},
			contains: "pattern",
		},
		{
			name: "provider missing model",
			mutate: func(cfg *Config) {
				cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
					"bad": {Type: ProviderOpenAI},
				})
			},
			contains: "model",
		},
		{
			name: "provider invalid type",
			mutate: func(cfg *Config) {
				cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
					"bad": {Type: "anthropic-grpc", Model: "m"},
				})
			},
			contains: "type",
		},
		{
			name: "compatible provider requires base url",
			mutate: func(cfg *Config) {
				cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
					"bad": {Type: ProviderOpenAICompatible, Model: "m"},
				})
			},
			contains: "base_url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
