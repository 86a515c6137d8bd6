package masking

import (
	"log/slog"

	"github.com/dataagent-io/dataagent/pkg/config"
)

// Service applies data masking to MCP tool results before they reach
// events, persistence, or the model. Created once at application startup.
// Thread-safe and stateless aside from compiled patterns.
type Service struct {
	defaults             *config.MaskingConfig
	serverConfigs        map[string]*config.MaskingConfig
	patterns             map[string]*CompiledPattern // Built-in + custom compiled patterns
	patternGroups        map[string][]string         // Group name → pattern names
	codeMaskers          map[string]Masker           // Registered code-based maskers
	serverCustomPatterns map[string][]string         // server name → custom pattern keys
}

// NewService creates a masking service with compiled patterns and registered
// maskers. defaults applies to servers without their own config; entries in
// serverConfigs override it per server. All patterns are compiled eagerly;
// invalid patterns are logged and skipped.
func NewService(defaults *config.MaskingConfig, serverConfigs map[string]*config.MaskingConfig) *Service {
	if defaults == nil {
		defaults = config.DefaultMaskingConfig()
	}

	s := &Service{
		defaults:             defaults,
		serverConfigs:        serverConfigs,
		patterns:             make(map[string]*CompiledPattern),
		patternGroups:        builtinPatternGroups(),
		codeMaskers:          make(map[string]Masker),
		serverCustomPatterns: make(map[string][]string),
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns()
	s.registerMasker(&KubernetesSecretMasker{})

	slog.Info("Masking service initialized",
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"enabled", defaults.Enabled)

	return s
}

// MaskToolResult applies server-specific masking to tool result content.
// Returns masked content. On masking failure, returns a redaction notice
// (fail-closed: leaked secrets are worse than a lost tool result).
func (s *Service) MaskToolResult(content string, serverName string) string {
	if content == "" {
		return content
	}

	cfg := s.configFor(serverName)
	if cfg == nil || !cfg.Enabled {
		return content
	}

	resolved := s.resolvePatterns(cfg, serverName)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		slog.Error("Masking failed, redacting content",
			"server", serverName, "error", err)
		return "[REDACTED: data masking failure - tool result could not be safely processed]"
	}

	return masked
}

// configFor returns the masking config for a server, falling back to defaults.
func (s *Service) configFor(serverName string) *config.MaskingConfig {
	if cfg, ok := s.serverConfigs[serverName]; ok && cfg != nil {
		return cfg
	}
	return s.defaults
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) (string, error) {
	masked := content

	// Code-based maskers first: structural awareness beats regex sweeps
	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked, nil
}

// registerMasker registers a code-based masker by its name.
func (s *Service) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
