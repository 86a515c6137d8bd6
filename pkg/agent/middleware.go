package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dataagent-io/dataagent/pkg/rules"
)

// PromptContext is the mutable state the middleware chain assembles into
// the system prompt before each model call.
type PromptContext struct {
	SessionID    string
	AssistantID  string
	UserQuery    string
	CurrentFiles []string
	Debug        bool

	sections []string
}

// Append adds a system prompt section.
func (p *PromptContext) Append(section string) {
	if section = strings.TrimSpace(section); section != "" {
		p.sections = append(p.sections, section)
	}
}

// SystemPrompt joins the accumulated sections.
func (p *PromptContext) SystemPrompt() string {
	return strings.Join(p.sections, "\n\n")
}

// Middleware contributes to the system prompt of each model call. A
// failing middleware is logged and skipped; it never aborts the call.
type Middleware interface {
	Name() string
	Apply(ctx context.Context, p *PromptContext) error
}

// RulesMiddleware matches the rule store against the request context and
// prepends the merged rule content. It runs first in the chain so rules
// lead the system prompt.
type RulesMiddleware struct {
	Store          *rules.Store
	MaxContentSize int

	// SessionRules are in-memory, highest-priority rules supplied by
	// the caller; scope session has no backing directory.
	SessionRules []*rules.Rule

	// OnApplied receives the evaluation trace of each model call.
	OnApplied func(trace *rules.EvaluationTrace)
}

// Name implements Middleware.
func (m *RulesMiddleware) Name() string { return "rules" }

// Apply matches, merges, and injects rule content, then reports the
// trace to the observer callback.
func (m *RulesMiddleware) Apply(_ context.Context, p *PromptContext) error {
	ruleSet := append([]*rules.Rule{}, m.SessionRules...)
	if m.Store != nil {
		ruleSet = append(ruleSet, m.Store.ListRules("")...)
	}
	if len(ruleSet) == 0 {
		return nil
	}

	matchCtx := rules.MatchContext{
		CurrentFiles: p.CurrentFiles,
		UserQuery:    p.UserQuery,
		SessionID:    p.SessionID,
		AssistantID:  p.AssistantID,
		ManualRules:  rules.ExtractManualRules(p.UserQuery),
	}
	matched, skipped := rules.Match(ruleSet, matchCtx)
	result := rules.Merge(matched, m.MaxContentSize)

	if content := rules.MergedContent(result.Rules); content != "" {
		p.Append(content)
	}

	trace := rules.BuildTrace(p.SessionID, ruleSet, matched, skipped, result)
	if p.Debug {
		if data, err := json.MarshalIndent(trace, "", "  "); err == nil {
			p.Append("## Rule Evaluation Trace\n\n```json\n" + string(data) + "\n```")
		}
	}
	if m.OnApplied != nil {
		m.OnApplied(trace)
	}
	return nil
}

// MemoryMiddleware injects the agent's persistent memory file.
type MemoryMiddleware struct {
	Memory *Memory
}

// Name implements Middleware.
func (m *MemoryMiddleware) Name() string { return "memory" }

// Apply loads (lazily creating) agent.md and appends it.
func (m *MemoryMiddleware) Apply(_ context.Context, p *PromptContext) error {
	if m.Memory == nil {
		return nil
	}
	content, err := m.Memory.Load()
	if err != nil {
		return err
	}
	p.Append(content)
	return nil
}

// SkillsMiddleware advertises the agent's loadable skills so the model
// can pull skill content in with read_file.
type SkillsMiddleware struct {
	Memory *Memory
}

// Name implements Middleware.
func (m *SkillsMiddleware) Name() string { return "skills" }

// Apply lists the available skills with their descriptions.
func (m *SkillsMiddleware) Apply(_ context.Context, p *PromptContext) error {
	if m.Memory == nil {
		return nil
	}
	skills, err := m.Memory.Skills()
	if err != nil {
		return err
	}
	if len(skills) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("## Available Skills\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "\n- **%s**: %s", s.Name, s.Description)
	}
	p.Append(b.String())
	return nil
}
