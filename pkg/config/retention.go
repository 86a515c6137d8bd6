package config

import "time"

// RetentionConfig controls session expiry and cleanup behavior.
type RetentionConfig struct {
	// SessionMaxIdle is how long a session may go without activity
	// before the cleanup loop archives it.
	SessionMaxIdle time.Duration `yaml:"session_max_idle"`

	// SessionRetentionDays is how many days archived sessions are kept
	// before deletion.
	SessionRetentionDays int `yaml:"session_retention_days"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionMaxIdle:       7 * 24 * time.Hour,
		SessionRetentionDays: 90,
		CleanupInterval:      1 * time.Hour,
	}
}
