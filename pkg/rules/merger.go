package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultMaxContentSize bounds the merged rule content injected into the
// system prompt.
const DefaultMaxContentSize = 64 * 1024

// Conflict records a same-name collision across scopes.
type Conflict struct {
	Name   string `json:"name"`
	Winner Scope  `json:"winner"`
	Loser  Scope  `json:"loser"`
	Reason string `json:"reason"`
}

// MergeResult is the final ordered rule list with detected conflicts.
type MergeResult struct {
	Rules      []*Rule
	Conflicts  []Conflict
	TotalBytes int
}

// TraceEntry names a rule together with the reason it was matched or
// skipped.
type TraceEntry struct {
	Name   string `json:"name"`
	Scope  Scope  `json:"scope"`
	Reason string `json:"reason"`
}

// EvaluationTrace is the per-request debug record of rule evaluation.
type EvaluationTrace struct {
	RequestID  string       `json:"request_id"`
	Timestamp  time.Time    `json:"timestamp"`
	Evaluated  []string     `json:"evaluated"`
	Matched    []TraceEntry `json:"matched"`
	Skipped    []TraceEntry `json:"skipped"`
	Conflicts  []Conflict   `json:"conflicts"`
	Applied    []string     `json:"applied"`
	TotalBytes int          `json:"total_bytes"`
}

// Merge resolves a set of matches into the final ordered rule list.
//
// Ordering: scope priority desc, then rule priority desc, then name asc.
// Same-name rules across scopes: the higher scope wins unless a
// lower-scope rule carries override=true; the loser is recorded as a
// conflict. When total content exceeds maxContentSize, rules are trimmed
// from the lowest-priority end.
func Merge(matches []MatchResult, maxContentSize int) MergeResult {
	if maxContentSize <= 0 {
		maxContentSize = DefaultMaxContentSize
	}

	var conflicts []Conflict
	byName := make(map[string]*Rule)
	for _, m := range matches {
		r := m.Rule
		prev, exists := byName[r.Name]
		if !exists {
			byName[r.Name] = r
			continue
		}
		winner, loser := resolveConflict(prev, r)
		byName[r.Name] = winner
		conflicts = append(conflicts, Conflict{
			Name:   r.Name,
			Winner: winner.Scope,
			Loser:  loser.Scope,
			Reason: conflictReason(winner, loser),
		})
	}

	final := make([]*Rule, 0, len(byName))
	for _, r := range byName {
		final = append(final, r)
	}
	sort.Slice(final, func(i, j int) bool {
		a, b := final[i], final[j]
		if a.Scope.Priority() != b.Scope.Priority() {
			return a.Scope.Priority() > b.Scope.Priority()
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Name < b.Name
	})

	total := 0
	for _, r := range final {
		total += r.Size()
	}
	for total > maxContentSize && len(final) > 0 {
		last := final[len(final)-1]
		final = final[:len(final)-1]
		total -= last.Size()
	}

	return MergeResult{Rules: final, Conflicts: conflicts, TotalBytes: total}
}

// resolveConflict picks the winner of a same-name collision: higher scope
// wins unless the lower scope carries override=true.
func resolveConflict(a, b *Rule) (winner, loser *Rule) {
	high, low := a, b
	if b.Scope.Priority() > a.Scope.Priority() {
		high, low = b, a
	}
	if low.Override {
		return low, high
	}
	return high, low
}

func conflictReason(winner, loser *Rule) string {
	if winner.Scope.Priority() < loser.Scope.Priority() {
		return fmt.Sprintf("%s-scope rule overrides %s scope (override=true)", winner.Scope, loser.Scope)
	}
	return fmt.Sprintf("%s scope takes precedence over %s scope", winner.Scope, loser.Scope)
}

// BuildTrace assembles the evaluation trace for one request.
func BuildTrace(requestID string, evaluated []*Rule, matched, skipped []MatchResult, result MergeResult) *EvaluationTrace {
	trace := &EvaluationTrace{
		RequestID:  requestID,
		Timestamp:  time.Now(),
		Conflicts:  result.Conflicts,
		TotalBytes: result.TotalBytes,
	}
	for _, r := range evaluated {
		trace.Evaluated = append(trace.Evaluated, r.Name)
	}
	for _, m := range matched {
		trace.Matched = append(trace.Matched, TraceEntry{Name: m.Rule.Name, Scope: m.Rule.Scope, Reason: m.Reason})
	}
	for _, m := range skipped {
		trace.Skipped = append(trace.Skipped, TraceEntry{Name: m.Rule.Name, Scope: m.Rule.Scope, Reason: m.Reason})
	}
	for _, r := range result.Rules {
		trace.Applied = append(trace.Applied, r.Name)
	}
	return trace
}

// MergedContent renders the final rule list as prompt text.
func MergedContent(ruleSet []*Rule) string {
	var b strings.Builder
	for i, r := range ruleSet {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Rule: %s\n\n%s", r.Name, r.Content)
	}
	return b.String()
}
