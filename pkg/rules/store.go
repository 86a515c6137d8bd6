package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds parsed rules for the three directory-backed scopes.
// Session-scope rules are supplied in-memory by callers and never persist
// here. Thread-safe; Reload swaps the whole rule set atomically.
type Store struct {
	dirs        map[Scope]string // unconfigured scopes are absent
	allowedDirs []string         // file-reference whitelist

	mu    sync.RWMutex
	rules map[Scope]map[string]*Rule
}

// NewStore creates a store backed by up to three directories. Empty paths
// leave the scope unconfigured (saving to it fails). allowedDirs is the
// whitelist for #[[file:...]] references; the backing directories are
// always included.
func NewStore(globalDir, userDir, projectDir string, allowedDirs []string) *Store {
	dirs := make(map[Scope]string)
	for scope, dir := range map[Scope]string{
		ScopeGlobal:  globalDir,
		ScopeUser:    userDir,
		ScopeProject: projectDir,
	} {
		if dir != "" {
			dirs[scope] = dir
			allowedDirs = append(allowedDirs, dir)
		}
	}
	return &Store{
		dirs:        dirs,
		allowedDirs: allowedDirs,
		rules:       make(map[Scope]map[string]*Rule),
	}
}

// Reload re-reads every configured directory. A file that fails to parse
// is logged and omitted; it never blocks the reload.
func (s *Store) Reload() error {
	fresh := make(map[Scope]map[string]*Rule)
	for scope, dir := range s.dirs {
		fresh[scope] = make(map[string]*Rule)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read rules directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			rule, err := ParseFile(path, scope, s.allowedDirs)
			if err != nil {
				slog.Warn("Skipping unparsable rule file", "path", path, "error", err)
				continue
			}
			if prev, exists := fresh[scope][rule.Name]; exists {
				slog.Warn("Duplicate rule name in scope, keeping first",
					"scope", scope, "name", rule.Name, "kept", prev.Path, "skipped", path)
				continue
			}
			fresh[scope][rule.Name] = rule
		}
	}

	s.mu.Lock()
	s.rules = fresh
	s.mu.Unlock()
	return nil
}

// ListRules returns rules for one scope, or for all scopes when scope is
// empty. Results are sorted by (scope priority desc, name asc).
func (s *Store) ListRules(scope Scope) []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for sc, byName := range s.rules {
		if scope != "" && sc != scope {
			continue
		}
		for _, r := range byName {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope.Priority() != out[j].Scope.Priority() {
			return out[i].Scope.Priority() > out[j].Scope.Priority()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GetRule finds a rule by name. With an empty scope the search order is
// project > user > global.
func (s *Store) GetRule(name string, scope Scope) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if scope != "" {
		if r, ok := s.rules[scope][name]; ok {
			return r, nil
		}
		return nil, fmt.Errorf("rule not found: %s (scope %s)", name, scope)
	}
	for _, sc := range []Scope{ScopeProject, ScopeUser, ScopeGlobal} {
		if r, ok := s.rules[sc][name]; ok {
			return r, nil
		}
	}
	return nil, fmt.Errorf("rule not found: %s", name)
}

// SaveRule writes the rule as a markdown file with YAML frontmatter into
// its scope directory and registers it. Saving to a scope without a
// configured directory fails.
func (s *Store) SaveRule(rule *Rule) error {
	dir, ok := s.dirs[rule.Scope]
	if !ok {
		return fmt.Errorf("no directory configured for scope %s", rule.Scope)
	}
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	content, err := renderRuleFile(rule)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}
	path := filepath.Join(dir, rule.Name+".md")
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[rule.Scope] == nil {
		s.rules[rule.Scope] = make(map[string]*Rule)
	}
	stored := *rule
	stored.Path = path
	s.rules[rule.Scope][rule.Name] = &stored
	return nil
}

// DeleteRule removes a rule file and unregisters it.
func (s *Store) DeleteRule(name string, scope Scope) error {
	dir, ok := s.dirs[scope]
	if !ok {
		return fmt.Errorf("no directory configured for scope %s", scope)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[scope][name]; !exists {
		return fmt.Errorf("rule not found: %s (scope %s)", name, scope)
	}
	if err := os.Remove(filepath.Join(dir, name+".md")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete rule file: %w", err)
	}
	delete(s.rules[scope], name)
	return nil
}

// renderRuleFile serializes a rule back into frontmatter + body form.
func renderRuleFile(rule *Rule) ([]byte, error) {
	front := map[string]any{
		"name":        rule.Name,
		"description": rule.Description,
	}
	if rule.Inclusion != "" && rule.Inclusion != InclusionAlways {
		front["inclusion"] = string(rule.Inclusion)
	}
	if rule.FileMatchPattern != "" {
		front["fileMatchPattern"] = rule.FileMatchPattern
	}
	if rule.Priority != 0 && rule.Priority != DefaultPriority {
		front["priority"] = rule.Priority
	}
	if rule.Override {
		front["override"] = true
	}
	if !rule.Enabled {
		front["enabled"] = false
	}
	for k, v := range rule.Metadata {
		front[k] = v
	}

	var b strings.Builder
	b.WriteString("---\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(front); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize frontmatter: %w", err)
	}
	b.WriteString("---\n\n")
	b.WriteString(rule.Content)
	if !strings.HasSuffix(rule.Content, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}
