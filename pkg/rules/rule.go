// Package rules implements per-user, per-scope rule files: markdown bodies
// with YAML frontmatter, matched against a request context and merged by
// scope and priority into prompt content.
package rules

// Scope identifies where a rule lives. Scope priority is strictly
// increasing: global < user < project < session.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
	ScopeSession Scope = "session"
)

// Priority returns the merge precedence of the scope (higher wins).
func (s Scope) Priority() int {
	switch s {
	case ScopeSession:
		return 3
	case ScopeProject:
		return 2
	case ScopeUser:
		return 1
	default:
		return 0
	}
}

// Inclusion controls when a rule applies.
type Inclusion string

const (
	InclusionAlways    Inclusion = "always"
	InclusionFileMatch Inclusion = "fileMatch"
	InclusionManual    Inclusion = "manual"
)

// Priority bounds for rules (clamped on parse).
const (
	MinPriority     = 1
	MaxPriority     = 100
	DefaultPriority = 50
)

// Rule is one parsed rule file. Identity is (Name, Scope).
type Rule struct {
	Name             string
	Description      string
	Inclusion        Inclusion
	FileMatchPattern string
	Priority         int
	Override         bool
	Enabled          bool
	Metadata         map[string]any

	// Content is the markdown body (the prompt text), with file
	// references already resolved.
	Content string

	Scope Scope
	Path  string // source file, empty for in-memory session rules
}

// Key is the identity of a rule: equality and hashing are by (name, scope).
type Key struct {
	Name  string
	Scope Scope
}

// Key returns the rule's identity.
func (r *Rule) Key() Key {
	return Key{Name: r.Name, Scope: r.Scope}
}

// Size returns the byte size of the rule content (used for trimming).
func (r *Rule) Size() int {
	return len(r.Content)
}
