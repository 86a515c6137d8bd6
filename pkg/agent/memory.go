package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMemoryTemplate seeds a fresh agent's persistent memory file.
const DefaultMemoryTemplate = `# Agent Memory

## Identity

You are a data agent. You help users explore, transform, and manage the
files in their workspace, and you use the tools made available to you.

## Learned Preferences

(nothing recorded yet)

## Notes

(nothing recorded yet)
`

// Memory is one agent's persistent on-disk state under
// <agent_root>/<agent_id>/: the agent.md memory file and the skills
// directory.
type Memory struct {
	root    string
	agentID string
	logger  *slog.Logger
}

// NewMemory creates a handle for the agent's on-disk state. Nothing is
// touched until Load or Save.
func NewMemory(agentRoot, agentID string) *Memory {
	return &Memory{root: agentRoot, agentID: agentID, logger: slog.Default()}
}

// Dir returns the agent's state directory.
func (m *Memory) Dir() string {
	return filepath.Join(m.root, m.agentID)
}

// Path returns the memory file path.
func (m *Memory) Path() string {
	return filepath.Join(m.Dir(), "agent.md")
}

// Load returns the memory content, lazily creating the file from the
// default template on first use.
func (m *Memory) Load() (string, error) {
	data, err := os.ReadFile(m.Path())
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read agent memory: %w", err)
	}
	if err := m.Save(DefaultMemoryTemplate); err != nil {
		return "", err
	}
	return DefaultMemoryTemplate, nil
}

// Save overwrites the memory file.
func (m *Memory) Save(content string) error {
	if err := os.MkdirAll(m.Dir(), 0o750); err != nil {
		return fmt.Errorf("failed to create agent directory: %w", err)
	}
	if err := os.WriteFile(m.Path(), []byte(content), 0o640); err != nil {
		return fmt.Errorf("failed to write agent memory: %w", err)
	}
	return nil
}

// Reset restores the memory file to the default template.
func (m *Memory) Reset() error {
	return m.Save(DefaultMemoryTemplate)
}

// CopyFrom replaces this agent's memory with another agent's.
func (m *Memory) CopyFrom(otherAgentID string) error {
	other := NewMemory(m.root, otherAgentID)
	data, err := os.ReadFile(other.Path())
	if err != nil {
		return fmt.Errorf("failed to read memory of agent %q: %w", otherAgentID, err)
	}
	return m.Save(string(data))
}

// Skill is a loadable capability descriptor from
// <agent_dir>/skills/<skill>/SKILL.md.
type Skill struct {
	Name        string
	Description string
	Content     string
	Dir         string
}

// skillFrontmatter is the YAML block of a SKILL.md file.
type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Skills loads every valid skill descriptor, sorted by name. A broken
// descriptor is logged and skipped, it never fails the whole load.
func (m *Memory) Skills() ([]Skill, error) {
	skillsDir := filepath.Join(m.Dir(), "skills")
	entries, err := os.ReadDir(skillsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(skillsDir, entry.Name())
		skill, err := loadSkill(dir)
		if err != nil {
			m.logger.Warn("Skipping invalid skill",
				"agent_id", m.agentID, "skill_dir", dir, "error", err)
			continue
		}
		skills = append(skills, *skill)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills, nil
}

func loadSkill(dir string) (*Skill, error) {
	data, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	if err != nil {
		return nil, err
	}
	front, body, err := splitSkillFrontmatter(string(data))
	if err != nil {
		return nil, err
	}
	var fm skillFrontmatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, fmt.Errorf("invalid YAML frontmatter: %w", err)
	}
	if fm.Name == "" {
		return nil, fmt.Errorf("frontmatter requires 'name'")
	}
	if fm.Description == "" {
		return nil, fmt.Errorf("frontmatter requires 'description'")
	}
	return &Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Content:     strings.TrimSpace(body),
		Dir:         dir,
	}, nil
}

func splitSkillFrontmatter(content string) (front, body string, err error) {
	trimmed := strings.TrimLeft(content, "\n\r\t ")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", fmt.Errorf("missing YAML frontmatter")
	}
	rest := strings.TrimPrefix(trimmed, "---")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", fmt.Errorf("unterminated YAML frontmatter")
	}
	return rest[:idx], rest[idx+len("\n---"):], nil
}
