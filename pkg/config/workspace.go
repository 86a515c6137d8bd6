package config

import "time"

// WorkspaceConfig controls the per-user filesystem sandbox.
type WorkspaceConfig struct {
	// Root is the directory under which every user workspace lives.
	Root string `yaml:"root"`

	MaxSizeBytes     int64 `yaml:"max_size_bytes"`
	MaxFiles         int   `yaml:"max_files"`
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// EnforceQuota disables quota checks entirely when false.
	EnforceQuota *bool `yaml:"enforce_quota"`

	// SweepMaxAge is how old (by mtime) a workspace must be before the
	// cleanup loop removes it. Zero disables sweeping.
	SweepMaxAge time.Duration `yaml:"sweep_max_age"`
}

// DefaultWorkspaceConfig returns the built-in workspace defaults.
func DefaultWorkspaceConfig() *WorkspaceConfig {
	enforce := true
	return &WorkspaceConfig{
		Root:             "./workspaces",
		MaxSizeBytes:     512 * 1024 * 1024,
		MaxFiles:         10000,
		MaxFileSizeBytes: 32 * 1024 * 1024,
		EnforceQuota:     &enforce,
		SweepMaxAge:      30 * 24 * time.Hour,
	}
}
