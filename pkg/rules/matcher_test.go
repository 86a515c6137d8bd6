package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkRule(name string, scope Scope, opts ...func(*Rule)) *Rule {
	r := &Rule{
		Name:        name,
		Description: name,
		Inclusion:   InclusionAlways,
		Priority:    DefaultPriority,
		Enabled:     true,
		Scope:       scope,
		Content:     "content of " + name,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func TestExtractManualRules(t *testing.T) {
	assert.Equal(t, []string{"style", "sec"}, ExtractManualRules("apply @style and @sec please"))
	assert.Equal(t, []string{"dup"}, ExtractManualRules("@dup @dup"))
	assert.Empty(t, ExtractManualRules("email me at a@b.com")) // mid-word @ is not an invocation
	assert.Empty(t, ExtractManualRules("no tokens here"))
}

func TestMatch(t *testing.T) {
	always := mkRule("always-on", ScopeGlobal)
	disabled := mkRule("disabled", ScopeGlobal, func(r *Rule) { r.Enabled = false })
	manual := mkRule("manual-only", ScopeUser, func(r *Rule) { r.Inclusion = InclusionManual })
	goFiles := mkRule("go-style", ScopeProject, func(r *Rule) {
		r.Inclusion = InclusionFileMatch
		r.FileMatchPattern = "*.go"
	})
	tsFiles := mkRule("ts-style", ScopeProject, func(r *Rule) {
		r.Inclusion = InclusionFileMatch
		r.FileMatchPattern = "*.ts"
	})

	ruleSet := []*Rule{always, disabled, manual, goFiles, tsFiles}

	t.Run("no context extras", func(t *testing.T) {
		matched, skipped := Match(ruleSet, MatchContext{CurrentFiles: []string{"pkg/api/server.go"}})

		names := func(rs []MatchResult) []string {
			var out []string
			for _, m := range rs {
				out = append(out, m.Rule.Name)
			}
			return out
		}
		assert.Equal(t, []string{"always-on", "go-style"}, names(matched))
		assert.Equal(t, []string{"disabled", "manual-only", "ts-style"}, names(skipped))

		assert.Equal(t, "disabled", skipped[0].Reason)
	})

	t.Run("manual invocation", func(t *testing.T) {
		matched, _ := Match(ruleSet, MatchContext{ManualRules: []string{"manual-only"}})
		require.Len(t, matched, 2)
		assert.Equal(t, "manual-only", matched[1].Rule.Name)
		assert.Contains(t, matched[1].Reason, "@manual-only")
	})
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		file    string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "pkg/api/server.go", true}, // filename considered
		{"pkg/*", "pkg/api", true},
		{"pkg/*", "pkg/api/server.go", false},
		{"**/*.go", "a/b/c.go", true},
		{"*.ts", "main.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchGlob(tt.pattern, tt.file),
			"pattern %q file %q", tt.pattern, tt.file)
	}
}
