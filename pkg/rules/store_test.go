package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestStoreReload(t *testing.T) {
	globalDir := t.TempDir()
	userDir := t.TempDir()

	writeRuleFile(t, globalDir, "base.md", "---\nname: base\ndescription: d\n---\nglobal body")
	writeRuleFile(t, userDir, "base.md", "---\nname: base\ndescription: d\n---\nuser body")
	writeRuleFile(t, userDir, "broken.md", "no frontmatter here")
	writeRuleFile(t, userDir, "notes.txt", "not a rule file")

	store := NewStore(globalDir, userDir, "", nil)
	require.NoError(t, store.Reload())

	all := store.ListRules("")
	require.Len(t, all, 2)
	assert.Equal(t, ScopeUser, all[0].Scope)
	assert.Equal(t, ScopeGlobal, all[1].Scope)

	userOnly := store.ListRules(ScopeUser)
	require.Len(t, userOnly, 1)
	assert.Equal(t, "user body", userOnly[0].Content)
}

func TestStoreReloadMissingDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"), "", "", nil)
	require.NoError(t, store.Reload())
	assert.Empty(t, store.ListRules(""))
}

func TestStoreGetRuleSearchOrder(t *testing.T) {
	globalDir := t.TempDir()
	userDir := t.TempDir()
	projectDir := t.TempDir()

	writeRuleFile(t, globalDir, "shared.md", "---\nname: shared\ndescription: d\n---\nglobal")
	writeRuleFile(t, userDir, "shared.md", "---\nname: shared\ndescription: d\n---\nuser")
	writeRuleFile(t, projectDir, "shared.md", "---\nname: shared\ndescription: d\n---\nproject")

	store := NewStore(globalDir, userDir, projectDir, nil)
	require.NoError(t, store.Reload())

	r, err := store.GetRule("shared", "")
	require.NoError(t, err)
	assert.Equal(t, ScopeProject, r.Scope)

	r, err = store.GetRule("shared", ScopeGlobal)
	require.NoError(t, err)
	assert.Equal(t, "global", r.Content)

	_, err = store.GetRule("nope", "")
	assert.Error(t, err)
}

func TestStoreSaveAndDelete(t *testing.T) {
	userDir := t.TempDir()
	store := NewStore("", userDir, "", nil)
	require.NoError(t, store.Reload())

	rule := &Rule{
		Name:        "saved",
		Description: "a saved rule",
		Inclusion:   InclusionFileMatch,
		FileMatchPattern: "*.go",
		Priority:    80,
		Enabled:     true,
		Scope:       ScopeUser,
		Content:     "body text",
	}
	require.NoError(t, store.SaveRule(rule))

	// The written file round-trips through the parser.
	parsed, err := ParseFile(filepath.Join(userDir, "saved.md"), ScopeUser, nil)
	require.NoError(t, err)
	assert.Equal(t, "saved", parsed.Name)
	assert.Equal(t, InclusionFileMatch, parsed.Inclusion)
	assert.Equal(t, "*.go", parsed.FileMatchPattern)
	assert.Equal(t, 80, parsed.Priority)
	assert.Equal(t, "body text", parsed.Content)

	got, err := store.GetRule("saved", ScopeUser)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Path)

	require.NoError(t, store.DeleteRule("saved", ScopeUser))
	_, err = store.GetRule("saved", ScopeUser)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(userDir, "saved.md"))
}

func TestStoreSaveUnconfiguredScope(t *testing.T) {
	store := NewStore("", t.TempDir(), "", nil)
	err := store.SaveRule(&Rule{Name: "x", Description: "d", Scope: ScopeProject, Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no directory configured")
}
