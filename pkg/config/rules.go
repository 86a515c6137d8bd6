package config

// RulesConfig locates the rule directories and bounds merged content.
type RulesConfig struct {
	// GlobalDir, UserDir and ProjectDir back the three persistent rule
	// scopes. An empty path leaves the scope unconfigured.
	GlobalDir  string `yaml:"global_dir"`
	UserDir    string `yaml:"user_dir"`
	ProjectDir string `yaml:"project_dir"`

	// AllowedDirs extends the whitelist for #[[file:...]] references
	// beyond the rule directories themselves.
	AllowedDirs []string `yaml:"allowed_dirs"`

	// MaxContentSize caps the total merged rule content injected into
	// the system prompt, in bytes.
	MaxContentSize int `yaml:"max_content_size"`
}

// DefaultRulesConfig returns the built-in rules defaults.
func DefaultRulesConfig() *RulesConfig {
	return &RulesConfig{
		ProjectDir:     "./.dataagent/rules",
		MaxContentSize: 64 * 1024,
	}
}
