package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/rules"
)

func sessionRule(name, content string, priority int) *rules.Rule {
	return &rules.Rule{
		Name:      name,
		Inclusion: rules.InclusionAlways,
		Priority:  priority,
		Enabled:   true,
		Content:   content,
		Scope:     rules.ScopeSession,
	}
}

func TestRulesMiddlewareInjectsContent(t *testing.T) {
	var trace *rules.EvaluationTrace
	mw := &RulesMiddleware{
		SessionRules: []*rules.Rule{
			sessionRule("style", "Prefer short answers.", 80),
			sessionRule("format", "Use markdown tables.", 40),
		},
		OnApplied: func(tr *rules.EvaluationTrace) { trace = tr },
	}

	p := &PromptContext{SessionID: "s1", UserQuery: "hello"}
	require.NoError(t, mw.Apply(context.Background(), p))

	prompt := p.SystemPrompt()
	assert.Contains(t, prompt, "## Rule: style")
	assert.Contains(t, prompt, "Prefer short answers.")
	assert.Contains(t, prompt, "## Rule: format")

	require.NotNil(t, trace)
	assert.Equal(t, "s1", trace.RequestID)
	assert.Equal(t, []string{"style", "format"}, trace.Applied)
}

func TestRulesMiddlewareManualInclusion(t *testing.T) {
	manual := sessionRule("secrets", "Never print credentials.", 50)
	manual.Inclusion = rules.InclusionManual
	mw := &RulesMiddleware{SessionRules: []*rules.Rule{manual}}

	p := &PromptContext{SessionID: "s1", UserQuery: "plain question"}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.NotContains(t, p.SystemPrompt(), "Never print credentials.")

	p = &PromptContext{SessionID: "s1", UserQuery: "check this @secrets"}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.Contains(t, p.SystemPrompt(), "Never print credentials.")
}

func TestRulesMiddlewareDebugTrace(t *testing.T) {
	mw := &RulesMiddleware{
		SessionRules: []*rules.Rule{sessionRule("style", "Short.", 50)},
	}

	p := &PromptContext{SessionID: "s1", Debug: true}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.Contains(t, p.SystemPrompt(), "Rule Evaluation Trace")
	assert.Contains(t, p.SystemPrompt(), `"request_id": "s1"`)
}

func TestRulesMiddlewareEmptyStore(t *testing.T) {
	mw := &RulesMiddleware{}
	p := &PromptContext{SessionID: "s1"}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.Empty(t, p.SystemPrompt())
}

func TestMemoryMiddleware(t *testing.T) {
	m := NewMemory(t.TempDir(), "helper")
	require.NoError(t, m.Save("# Memory\n\nRemember the user prefers CSV.\n"))

	mw := &MemoryMiddleware{Memory: m}
	p := &PromptContext{}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.Contains(t, p.SystemPrompt(), "prefers CSV")
}

func TestSkillsMiddleware(t *testing.T) {
	root := t.TempDir()
	m := NewMemory(root, "helper")
	writeSkill(t, filepath.Join(root, "helper"), "csv", `---
name: csv-wrangling
description: Normalize CSV files
---
Body.
`)

	mw := &SkillsMiddleware{Memory: m}
	p := &PromptContext{}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.Contains(t, p.SystemPrompt(), "Available Skills")
	assert.Contains(t, p.SystemPrompt(), "**csv-wrangling**: Normalize CSV files")
}

func TestSkillsMiddlewareNoSkills(t *testing.T) {
	mw := &SkillsMiddleware{Memory: NewMemory(t.TempDir(), "helper")}
	p := &PromptContext{}
	require.NoError(t, mw.Apply(context.Background(), p))
	assert.Empty(t, p.SystemPrompt())
}
