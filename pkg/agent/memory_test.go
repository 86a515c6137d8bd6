package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, agentDir, name, content string) {
	t.Helper()
	dir := filepath.Join(agentDir, "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o640))
}

func TestMemoryLazyCreation(t *testing.T) {
	root := t.TempDir()
	m := NewMemory(root, "helper")

	content, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMemoryTemplate, content)

	// The file now exists on disk.
	data, err := os.ReadFile(filepath.Join(root, "helper", "agent.md"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMemoryTemplate, string(data))
}

func TestMemorySaveAndReset(t *testing.T) {
	m := NewMemory(t.TempDir(), "helper")

	require.NoError(t, m.Save("# Customized\n"))
	content, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "# Customized\n", content)

	require.NoError(t, m.Reset())
	content, err = m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMemoryTemplate, content)
}

func TestMemoryCopyFrom(t *testing.T) {
	root := t.TempDir()
	source := NewMemory(root, "source")
	require.NoError(t, source.Save("# Source memory\n"))

	target := NewMemory(root, "target")
	require.NoError(t, target.CopyFrom("source"))

	content, err := target.Load()
	require.NoError(t, err)
	assert.Equal(t, "# Source memory\n", content)

	assert.Error(t, target.CopyFrom("missing"))
}

func TestSkillsLoading(t *testing.T) {
	root := t.TempDir()
	m := NewMemory(root, "helper")
	agentDir := filepath.Join(root, "helper")

	writeSkill(t, agentDir, "csv", `---
name: csv-wrangling
description: Normalize and summarize CSV files
---

Use read_file on the target, then describe the columns.
`)
	writeSkill(t, agentDir, "zz-broken", "no frontmatter here")
	writeSkill(t, agentDir, "api", `---
name: api-digest
description: Summarize API responses
---
Body.
`)

	skills, err := m.Skills()
	require.NoError(t, err)
	require.Len(t, skills, 2)

	// Sorted by name, broken skill skipped.
	assert.Equal(t, "api-digest", skills[0].Name)
	assert.Equal(t, "csv-wrangling", skills[1].Name)
	assert.Equal(t, "Normalize and summarize CSV files", skills[1].Description)
	assert.Contains(t, skills[1].Content, "describe the columns")
}

func TestSkillsMissingRequiredKeys(t *testing.T) {
	root := t.TempDir()
	m := NewMemory(root, "helper")
	agentDir := filepath.Join(root, "helper")

	writeSkill(t, agentDir, "unnamed", "---\ndescription: no name\n---\nbody")
	writeSkill(t, agentDir, "undescribed", "---\nname: solo\n---\nbody")

	skills, err := m.Skills()
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestSkillsNoDirectory(t *testing.T) {
	m := NewMemory(t.TempDir(), "helper")
	skills, err := m.Skills()
	require.NoError(t, err)
	assert.Nil(t, skills)
}
