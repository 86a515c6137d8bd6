package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asMatches(rs ...*Rule) []MatchResult {
	out := make([]MatchResult, len(rs))
	for i, r := range rs {
		out[i] = MatchResult{Rule: r, Reason: "inclusion is always"}
	}
	return out
}

// TestMergeOrdering covers the merge-ordering property: scope priority
// desc, then rule priority desc, then name asc.
func TestMergeOrdering(t *testing.T) {
	rules := []*Rule{
		mkRule("zeta", ScopeGlobal, func(r *Rule) { r.Priority = 90 }),
		mkRule("alpha", ScopeProject, func(r *Rule) { r.Priority = 10 }),
		mkRule("beta", ScopeUser, func(r *Rule) { r.Priority = 50 }),
		mkRule("gamma", ScopeUser, func(r *Rule) { r.Priority = 50 }),
		mkRule("delta", ScopeSession),
	}

	result := Merge(asMatches(rules...), 0)
	var names []string
	for _, r := range result.Rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"delta", "alpha", "beta", "gamma", "zeta"}, names)
	assert.Empty(t, result.Conflicts)
}

func TestMergeSameNameAcrossScopes(t *testing.T) {
	t.Run("higher scope wins", func(t *testing.T) {
		global := mkRule("style", ScopeGlobal)
		project := mkRule("style", ScopeProject)

		result := Merge(asMatches(global, project), 0)
		require.Len(t, result.Rules, 1)
		assert.Equal(t, ScopeProject, result.Rules[0].Scope)

		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, "style", result.Conflicts[0].Name)
		assert.Equal(t, ScopeProject, result.Conflicts[0].Winner)
		assert.Equal(t, ScopeGlobal, result.Conflicts[0].Loser)
	})

	t.Run("lower scope with override wins", func(t *testing.T) {
		global := mkRule("style", ScopeGlobal, func(r *Rule) { r.Override = true })
		project := mkRule("style", ScopeProject)

		result := Merge(asMatches(project, global), 0)
		require.Len(t, result.Rules, 1)
		assert.Equal(t, ScopeGlobal, result.Rules[0].Scope)

		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, ScopeGlobal, result.Conflicts[0].Winner)
		assert.Contains(t, result.Conflicts[0].Reason, "override")
	})
}

func TestMergeTrimsToMaxContentSize(t *testing.T) {
	big := func(name string, scope Scope, priority, size int) *Rule {
		return mkRule(name, scope, func(r *Rule) {
			r.Priority = priority
			r.Content = string(make([]byte, size))
		})
	}

	keep := big("keep", ScopeProject, 90, 40)
	mid := big("mid", ScopeUser, 50, 40)
	drop := big("drop", ScopeGlobal, 10, 40)

	result := Merge(asMatches(drop, mid, keep), 100)
	var names []string
	for _, r := range result.Rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"keep", "mid"}, names)
	assert.LessOrEqual(t, result.TotalBytes, 100)
}

func TestBuildTrace(t *testing.T) {
	a := mkRule("a", ScopeUser)
	b := mkRule("b", ScopeUser, func(r *Rule) { r.Enabled = false })

	matched, skipped := Match([]*Rule{a, b}, MatchContext{})
	result := Merge(matched, 0)
	trace := BuildTrace("req-1", []*Rule{a, b}, matched, skipped, result)

	assert.Equal(t, "req-1", trace.RequestID)
	assert.Equal(t, []string{"a", "b"}, trace.Evaluated)
	require.Len(t, trace.Matched, 1)
	assert.Equal(t, "a", trace.Matched[0].Name)
	require.Len(t, trace.Skipped, 1)
	assert.Equal(t, "disabled", trace.Skipped[0].Reason)
	assert.Equal(t, []string{"a"}, trace.Applied)
	assert.Equal(t, len(a.Content), trace.TotalBytes)
}

func TestMergedContent(t *testing.T) {
	a := mkRule("a", ScopeUser)
	b := mkRule("b", ScopeUser)
	content := MergedContent([]*Rule{a, b})
	assert.Contains(t, content, "## Rule: a")
	assert.Contains(t, content, "content of a")
	assert.Contains(t, content, "## Rule: b")
}
