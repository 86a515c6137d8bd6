package config

import (
	"fmt"
	"sync"
)

// LLMProviderType identifies the wire protocol a provider speaks.
type LLMProviderType string

const (
	// ProviderOpenAI is the hosted OpenAI API.
	ProviderOpenAI LLMProviderType = "openai"
	// ProviderOpenAICompatible is any endpoint speaking the OpenAI
	// chat-completions protocol (vLLM, Ollama, gateways).
	ProviderOpenAICompatible LLMProviderType = "openai_compatible"
)

// IsValid reports whether the provider type is known.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case ProviderOpenAI, ProviderOpenAICompatible:
		return true
	}
	return false
}

// LLMProviderConfig defines one entry of llm-providers.yaml.
type LLMProviderConfig struct {
	// Provider type (required)
	Type LLMProviderType `yaml:"type" validate:"required"`

	// Model name (required)
	Model string `yaml:"model" validate:"required"`

	// Environment variable name for the API key
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Optional custom endpoint/base URL (required for openai_compatible)
	BaseURL string `yaml:"base_url,omitempty"`

	// Maximum tokens of a single tool result forwarded to the model
	MaxToolResultTokens int `yaml:"max_tool_result_tokens,omitempty"`

	// Optional sampling temperature; nil uses the provider default
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// LLMProviderRegistry stores LLM provider configurations in memory with thread-safe access
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
	mu        sync.RWMutex
}

// NewLLMProviderRegistry creates a new LLM provider registry
func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig) *LLMProviderRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*LLMProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &LLMProviderRegistry{
		providers: copied,
	}
}

// Get retrieves an LLM provider configuration by name (thread-safe)
func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return provider, nil
}

// GetAll returns all LLM provider configurations (thread-safe, returns copy)
func (r *LLMProviderRegistry) GetAll() map[string]*LLMProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*LLMProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if an LLM provider exists in the registry (thread-safe)
func (r *LLMProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[name]
	return exists
}

// Len returns the number of LLM providers in the registry (thread-safe)
func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
