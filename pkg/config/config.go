package config

// Config is the umbrella configuration object returned by Initialize()
// and threaded through the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	Server    *ServerConfig
	Workspace *WorkspaceConfig
	Rules     *RulesConfig
	Agent     *AgentConfig
	HITL      *HITLConfig
	MCP       *MCPPoolConfig
	Retention *RetentionConfig
	Masking   *MaskingConfig

	LLMProviderRegistry *LLMProviderRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.LLMProviderRegistry != nil {
		s.LLMProviders = c.LLMProviderRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
// This is a convenience method that wraps LLMProviderRegistry.Get().
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}

// DefaultLLMProvider resolves the provider named by agent.default_provider,
// falling back to the sole configured provider when only one exists.
func (c *Config) DefaultLLMProvider() (string, *LLMProviderConfig, error) {
	if c.Agent != nil && c.Agent.DefaultProvider != "" {
		p, err := c.LLMProviderRegistry.Get(c.Agent.DefaultProvider)
		return c.Agent.DefaultProvider, p, err
	}
	all := c.LLMProviderRegistry.GetAll()
	if len(all) == 1 {
		for name, p := range all {
			return name, p, nil
		}
	}
	return "", nil, ErrLLMProviderNotFound
}
