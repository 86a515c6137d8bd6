package config

import "time"

// HITLConfig controls human-in-the-loop approval behavior.
type HITLConfig struct {
	// ApprovalTimeout is how long a pending approval waits for a
	// decision before auto-rejecting.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`

	// Slack optionally notifies a channel when an approval parks.
	Slack *SlackConfig `yaml:"slack"`
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`

	// DashboardURL is linked from notifications so reviewers can jump
	// straight to the pending session.
	DashboardURL string `yaml:"dashboard_url"`
}

// DefaultHITLConfig returns the built-in HITL defaults.
func DefaultHITLConfig() *HITLConfig {
	return &HITLConfig{
		ApprovalTimeout: 5 * time.Minute,
		Slack: &SlackConfig{
			Enabled:  false,
			TokenEnv: "SLACK_BOT_TOKEN",
		},
	}
}
