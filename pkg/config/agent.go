// Package config provides configuration management for the dataagent
// server: listener, workspace, rules, agent pipeline, MCP pool, HITL and
// LLM provider settings.
package config

// AgentConfig controls the agent execution pipeline.
type AgentConfig struct {
	// AgentRoot is the directory holding per-agent state: agent.md
	// memory files and skills/<skill>/SKILL.md descriptors.
	AgentRoot string `yaml:"agent_root"`

	// MaxRounds bounds the tool-use loop within one execution.
	MaxRounds int `yaml:"max_rounds"`

	// MaxDiffLines truncates unified diffs emitted for file operations.
	MaxDiffLines int `yaml:"max_diff_lines"`

	// DefaultProvider names the llm-providers.yaml entry used when a
	// request does not select one.
	DefaultProvider string `yaml:"default_provider"`
}

// DefaultAgentConfig returns the built-in agent pipeline defaults.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		AgentRoot:    "./agents",
		MaxRounds:    20,
		MaxDiffLines: 200,
	}
}
