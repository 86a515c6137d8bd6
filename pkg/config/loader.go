package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// DataagentYAMLConfig represents the complete dataagent.yaml file structure
type DataagentYAMLConfig struct {
	Server    *ServerConfig    `yaml:"server"`
	Workspace *WorkspaceConfig `yaml:"workspace"`
	Rules     *RulesConfig     `yaml:"rules"`
	Agent     *AgentConfig     `yaml:"agent"`
	HITL      *HITLConfig      `yaml:"hitl"`
	MCP       *MCPPoolConfig   `yaml:"mcp"`
	Retention *RetentionConfig `yaml:"retention"`
	Masking   *MaskingConfig   `yaml:"masking"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file structure
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]*LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user-defined values over built-in defaults
//  5. Build the LLM provider registry
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"llm_providers", stats.LLMProviders,
		"server_port", cfg.Server.Port)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load dataagent.yaml (server, workspace, rules, agent, hitl, mcp, retention, masking)
	fileCfg, err := loader.loadDataagentYAML()
	if err != nil {
		return nil, NewLoadError("dataagent.yaml", err)
	}

	// 2. Load llm-providers.yaml
	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	// 3. Merge user values over built-in defaults, section by section.
	// Start with defaults, then merge user config on top so unset fields
	// keep their defaults.
	cfg := &Config{
		configDir: configDir,
		Server:    DefaultServerConfig(),
		Workspace: DefaultWorkspaceConfig(),
		Rules:     DefaultRulesConfig(),
		Agent:     DefaultAgentConfig(),
		HITL:      DefaultHITLConfig(),
		MCP:       DefaultMCPPoolConfig(),
		Retention: DefaultRetentionConfig(),
		Masking:   DefaultMaskingConfig(),
	}
	if err := mergeSection("server", cfg.Server, fileCfg.Server); err != nil {
		return nil, err
	}
	if err := mergeSection("workspace", cfg.Workspace, fileCfg.Workspace); err != nil {
		return nil, err
	}
	if err := mergeSection("rules", cfg.Rules, fileCfg.Rules); err != nil {
		return nil, err
	}
	if err := mergeSection("agent", cfg.Agent, fileCfg.Agent); err != nil {
		return nil, err
	}
	if err := mergeSection("hitl", cfg.HITL, fileCfg.HITL); err != nil {
		return nil, err
	}
	if err := mergeSection("mcp", cfg.MCP, fileCfg.MCP); err != nil {
		return nil, err
	}
	if err := mergeSection("retention", cfg.Retention, fileCfg.Retention); err != nil {
		return nil, err
	}
	if err := mergeSection("masking", cfg.Masking, fileCfg.Masking); err != nil {
		return nil, err
	}

	// 4. Build the provider registry
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(llmProviders)

	return cfg, nil
}

// mergeSection merges user-provided values into a defaults struct.
// A nil src leaves the defaults untouched; non-zero src fields override.
func mergeSection[T any](name string, dst, src *T) error {
	if src == nil {
		return nil
	}
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge %s config: %w", name, err)
	}
	return nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadDataagentYAML() (*DataagentYAMLConfig, error) {
	var config DataagentYAMLConfig
	if err := l.loadYAML("dataagent.yaml", &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]*LLMProviderConfig, error) {
	var config LLMProvidersYAMLConfig
	config.LLMProviders = make(map[string]*LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		return nil, err
	}

	return config.LLMProviders, nil
}
