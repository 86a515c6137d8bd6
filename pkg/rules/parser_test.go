package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = `---
name: code-style
description: Project code style conventions
priority: 70
---

Use tabs, not spaces.
`

func TestParseValidRule(t *testing.T) {
	r, err := Parse([]byte(validRule), ScopeProject, nil)
	require.NoError(t, err)

	assert.Equal(t, "code-style", r.Name)
	assert.Equal(t, "Project code style conventions", r.Description)
	assert.Equal(t, InclusionAlways, r.Inclusion)
	assert.Equal(t, 70, r.Priority)
	assert.True(t, r.Enabled)
	assert.False(t, r.Override)
	assert.Equal(t, ScopeProject, r.Scope)
	assert.Equal(t, "Use tabs, not spaces.", r.Content)
}

func TestParseDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, r *Rule)
	}{
		{
			name: "priority clamps above max",
			content: "---\nname: a\ndescription: d\npriority: 500\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.Equal(t, MaxPriority, r.Priority) },
		},
		{
			name: "priority clamps below min",
			content: "---\nname: a\ndescription: d\npriority: 0\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.Equal(t, MinPriority, r.Priority) },
		},
		{
			name: "invalid priority defaults",
			content: "---\nname: a\ndescription: d\npriority: high\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.Equal(t, DefaultPriority, r.Priority) },
		},
		{
			name: "invalid inclusion defaults to always",
			content: "---\nname: a\ndescription: d\ninclusion: sometimes\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.Equal(t, InclusionAlways, r.Inclusion) },
		},
		{
			name: "invalid override defaults to false",
			content: "---\nname: a\ndescription: d\noverride: yes please\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.False(t, r.Override) },
		},
		{
			name: "invalid enabled defaults to true",
			content: "---\nname: a\ndescription: d\nenabled: maybe\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.True(t, r.Enabled) },
		},
		{
			name: "free metadata is preserved",
			content: "---\nname: a\ndescription: d\nauthor: alice\n---\nbody",
			check: func(t *testing.T, r *Rule) { assert.Equal(t, "alice", r.Metadata["author"]) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.content), ScopeUser, nil)
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "just a body\n"},
		{"unterminated frontmatter", "---\nname: a\ndescription: d\nbody"},
		{"missing name", "---\ndescription: d\n---\nbody"},
		{"missing description", "---\nname: a\n---\nbody"},
		{"fileMatch without pattern", "---\nname: a\ndescription: d\ninclusion: fileMatch\n---\nbody"},
		{"invalid yaml", "---\nname: [unclosed\n---\nbody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), ScopeUser, nil)
			require.Error(t, err)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestParseFileSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.md")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxRuleFileSize+1), 0o600))

	_, err := ParseFile(path, ScopeUser, nil)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, path, perr.Path)
}

func TestFileReferences(t *testing.T) {
	allowed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(allowed, "snippet.md"), []byte("SNIPPET"), 0o600))

	forbidden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(forbidden, "secret.md"), []byte("SECRET"), 0o600))

	t.Run("allowed reference is inlined", func(t *testing.T) {
		content := "---\nname: a\ndescription: d\n---\nbefore #[[file:snippet.md]] after"
		r, err := Parse([]byte(content), ScopeUser, []string{allowed})
		require.NoError(t, err)
		assert.Equal(t, "before SNIPPET after", r.Content)
	})

	t.Run("out-of-set reference is blocked", func(t *testing.T) {
		ref := filepath.Join(forbidden, "secret.md")
		content := "---\nname: a\ndescription: d\n---\nsee #[[file:" + ref + "]]"
		r, err := Parse([]byte(content), ScopeUser, []string{allowed})
		require.NoError(t, err)
		assert.Equal(t, "see [File reference blocked: "+ref+"]", r.Content)
		assert.NotContains(t, r.Content, "SECRET")
	})

	t.Run("escape via dotdot is blocked", func(t *testing.T) {
		content := "---\nname: a\ndescription: d\n---\n#[[file:../outside.md]]"
		r, err := Parse([]byte(content), ScopeUser, []string{allowed})
		require.NoError(t, err)
		assert.Contains(t, r.Content, "[File reference blocked: ../outside.md]")
	})
}
