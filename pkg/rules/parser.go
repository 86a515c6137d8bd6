package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxRuleFileSize bounds a single rule file.
const MaxRuleFileSize = 1 << 20 // 1 MiB

// ParseError is returned for rule files that cannot be parsed at all
// (missing frontmatter, invalid YAML, missing required keys). A single bad
// file never blocks a store reload; the rule is skipped with a warning.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rule parse error: %s", e.Reason)
	}
	return fmt.Sprintf("rule parse error in %s: %s", e.Path, e.Reason)
}

// fileRefPattern matches #[[file:PATH]] references in rule bodies.
var fileRefPattern = regexp.MustCompile(`#\[\[file:([^\]]+)\]\]`)

// ParseFile reads and parses a rule file. File references in the body are
// resolved only inside allowedDirs; blocked references become literal
// placeholders.
func ParseFile(path string, scope Scope, allowedDirs []string) (*Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rule file: %w", err)
	}
	if info.Size() > MaxRuleFileSize {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("file exceeds %d bytes", MaxRuleFileSize)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	rule, err := Parse(data, scope, allowedDirs)
	if err != nil {
		if perr, ok := err.(*ParseError); ok {
			perr.Path = path
		}
		return nil, err
	}
	rule.Path = path
	return rule, nil
}

// Parse parses rule content: a YAML frontmatter block between ---
// delimiters followed by the markdown body. Required keys: name,
// description. Optional keys clamp/default on invalid values with a
// warning instead of failing.
func Parse(data []byte, scope Scope, allowedDirs []string) (*Rule, error) {
	front, body, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(front), &fields); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid YAML frontmatter: %v", err)}
	}
	if fields == nil {
		fields = map[string]any{}
	}

	name, _ := fields["name"].(string)
	if name == "" {
		return nil, &ParseError{Reason: "frontmatter requires 'name'"}
	}
	description, _ := fields["description"].(string)
	if description == "" {
		return nil, &ParseError{Reason: "frontmatter requires 'description'"}
	}

	rule := &Rule{
		Name:        name,
		Description: description,
		Inclusion:   InclusionAlways,
		Priority:    DefaultPriority,
		Enabled:     true,
		Scope:       scope,
	}

	if v, ok := fields["inclusion"]; ok {
		switch Inclusion(fmt.Sprint(v)) {
		case InclusionAlways, InclusionFileMatch, InclusionManual:
			rule.Inclusion = Inclusion(fmt.Sprint(v))
		default:
			slog.Warn("Invalid rule inclusion, defaulting to always", "rule", name, "inclusion", v)
		}
	}
	if v, ok := fields["fileMatchPattern"]; ok {
		rule.FileMatchPattern, _ = v.(string)
	}
	if rule.Inclusion == InclusionFileMatch && rule.FileMatchPattern == "" {
		return nil, &ParseError{Reason: "fileMatch inclusion requires fileMatchPattern"}
	}
	if v, ok := fields["priority"]; ok {
		rule.Priority = clampPriority(name, v)
	}
	if v, ok := fields["override"]; ok {
		if b, isBool := v.(bool); isBool {
			rule.Override = b
		} else {
			slog.Warn("Invalid rule override value, defaulting to false", "rule", name, "override", v)
		}
	}
	if v, ok := fields["enabled"]; ok {
		if b, isBool := v.(bool); isBool {
			rule.Enabled = b
		} else {
			slog.Warn("Invalid rule enabled value, defaulting to true", "rule", name, "enabled", v)
		}
	}

	known := map[string]bool{
		"name": true, "description": true, "inclusion": true,
		"fileMatchPattern": true, "priority": true, "override": true, "enabled": true,
	}
	for k, v := range fields {
		if known[k] {
			continue
		}
		if rule.Metadata == nil {
			rule.Metadata = map[string]any{}
		}
		rule.Metadata[k] = v
	}

	rule.Content = resolveFileRefs(strings.TrimSpace(body), allowedDirs)
	return rule, nil
}

// splitFrontmatter separates the YAML block between --- delimiters from
// the body. Absent frontmatter is a parse error.
func splitFrontmatter(content string) (front, body string, err error) {
	trimmed := strings.TrimLeft(content, "\n\r \t")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", &ParseError{Reason: "missing YAML frontmatter"}
	}
	rest := strings.TrimPrefix(trimmed, "---")
	rest = strings.TrimPrefix(rest, "\n")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", &ParseError{Reason: "unterminated YAML frontmatter"}
	}
	front = rest[:idx]
	body = rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return front, body, nil
}

func clampPriority(rule string, v any) int {
	var p int
	switch n := v.(type) {
	case int:
		p = n
	case int64:
		p = int(n)
	case float64:
		p = int(n)
	default:
		slog.Warn("Invalid rule priority, defaulting", "rule", rule, "priority", v, "default", DefaultPriority)
		return DefaultPriority
	}
	if p < MinPriority {
		slog.Warn("Rule priority below minimum, clamping", "rule", rule, "priority", p)
		return MinPriority
	}
	if p > MaxPriority {
		slog.Warn("Rule priority above maximum, clamping", "rule", rule, "priority", p)
		return MaxPriority
	}
	return p
}

// resolveFileRefs inlines #[[file:PATH]] references whose resolved target
// lies inside one of allowedDirs. Out-of-set references yield a literal
// blocked placeholder and a log line, never the file body.
func resolveFileRefs(body string, allowedDirs []string) string {
	return fileRefPattern.ReplaceAllStringFunc(body, func(match string) string {
		ref := strings.TrimSpace(fileRefPattern.FindStringSubmatch(match)[1])
		target, err := resolveAllowed(ref, allowedDirs)
		if err != nil {
			slog.Warn("Blocked rule file reference", "ref", ref, "error", err)
			return fmt.Sprintf("[File reference blocked: %s]", ref)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			slog.Warn("Failed to read rule file reference", "ref", ref, "error", err)
			return fmt.Sprintf("[File reference blocked: %s]", ref)
		}
		return string(data)
	})
}

// resolveAllowed resolves ref against each allowed directory and requires
// the symlink-resolved result to stay inside that directory.
func resolveAllowed(ref string, allowedDirs []string) (string, error) {
	for _, dir := range allowedDirs {
		base, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		candidate := ref
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(base, candidate)
		}
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			continue
		}
		baseResolved, err := filepath.EvalSymlinks(base)
		if err != nil {
			continue
		}
		if resolved == baseResolved || strings.HasPrefix(resolved, baseResolved+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("reference outside allowed directories")
}
