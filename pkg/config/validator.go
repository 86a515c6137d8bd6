package config

import (
	"fmt"
	"regexp"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateWorkspace(); err != nil {
		return fmt.Errorf("workspace validation failed: %w", err)
	}
	if err := v.validateAgent(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateHITL(); err != nil {
		return fmt.Errorf("hitl validation failed: %w", err)
	}
	if err := v.validateMCP(); err != nil {
		return fmt.Errorf("mcp validation failed: %w", err)
	}
	if err := v.validateMasking(); err != nil {
		return fmt.Errorf("masking validation failed: %w", err)
	}
	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateServer() error {
	s := v.cfg.Server
	if s.Port < 1 || s.Port > 65535 {
		return NewValidationError("server", "", "port", fmt.Errorf("%w: %d", ErrInvalidValue, s.Port))
	}
	if s.MaxConnections < 1 {
		return NewValidationError("server", "", "max_connections", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *ConfigValidator) validateWorkspace() error {
	w := v.cfg.Workspace
	if w.Root == "" {
		return NewValidationError("workspace", "", "root", ErrMissingRequiredField)
	}
	if w.MaxSizeBytes < 1 {
		return NewValidationError("workspace", "", "max_size_bytes", fmt.Errorf("must be positive"))
	}
	if w.MaxFiles < 1 {
		return NewValidationError("workspace", "", "max_files", fmt.Errorf("must be positive"))
	}
	if w.MaxFileSizeBytes < 1 {
		return NewValidationError("workspace", "", "max_file_size_bytes", fmt.Errorf("must be positive"))
	}
	if w.MaxFileSizeBytes > w.MaxSizeBytes {
		return NewValidationError("workspace", "", "max_file_size_bytes",
			fmt.Errorf("exceeds max_size_bytes (%d > %d)", w.MaxFileSizeBytes, w.MaxSizeBytes))
	}
	return nil
}

func (v *ConfigValidator) validateAgent() error {
	a := v.cfg.Agent
	if a.MaxRounds < 1 {
		return NewValidationError("agent", "", "max_rounds", fmt.Errorf("must be at least 1"))
	}
	if a.MaxDiffLines < 0 {
		return NewValidationError("agent", "", "max_diff_lines", fmt.Errorf("must not be negative"))
	}
	if a.DefaultProvider != "" && !v.cfg.LLMProviderRegistry.Has(a.DefaultProvider) {
		return NewValidationError("agent", "", "default_provider",
			fmt.Errorf("%w: %s", ErrLLMProviderNotFound, a.DefaultProvider))
	}
	return nil
}

func (v *ConfigValidator) validateHITL() error {
	h := v.cfg.HITL
	if h.ApprovalTimeout <= 0 {
		return NewValidationError("hitl", "", "approval_timeout", fmt.Errorf("must be positive"))
	}
	if h.Slack != nil && h.Slack.Enabled && h.Slack.Channel == "" {
		return NewValidationError("hitl", "", "slack.channel", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateMCP() error {
	m := v.cfg.MCP
	if m.MaxConnectionsPerUser < 1 {
		return NewValidationError("mcp", "", "max_connections_per_user", fmt.Errorf("must be at least 1"))
	}
	if m.MaxTotalConnections < m.MaxConnectionsPerUser {
		return NewValidationError("mcp", "", "max_total_connections",
			fmt.Errorf("must be at least max_connections_per_user (%d)", m.MaxConnectionsPerUser))
	}
	return nil
}

func (v *ConfigValidator) validateMasking() error {
	m := v.cfg.Masking
	for i, p := range m.CustomPatterns {
		id := fmt.Sprintf("custom_patterns[%d]", i)
		if p.Pattern == "" {
			return NewValidationError("masking", id, "pattern", ErrMissingRequiredField)
		}
		if p.Replacement == "" {
			return NewValidationError("masking", id, "replacement", ErrMissingRequiredField)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return NewValidationError("masking", id, "pattern", fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
	}
	return nil
}

func (v *ConfigValidator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if provider.Type == "" {
			return NewValidationError("llm_provider", name, "type", ErrMissingRequiredField)
		}
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type",
				fmt.Errorf("%w: %s", ErrInvalidValue, provider.Type))
		}
		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
		if provider.Type == ProviderOpenAICompatible && provider.BaseURL == "" {
			return NewValidationError("llm_provider", name, "base_url",
				fmt.Errorf("required for type %s", ProviderOpenAICompatible))
		}
		if provider.MaxToolResultTokens < 0 {
			return NewValidationError("llm_provider", name, "max_tool_result_tokens",
				fmt.Errorf("must not be negative"))
		}
	}
	return nil
}
