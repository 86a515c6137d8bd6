package rules

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// MatchContext carries the per-request inputs the matcher evaluates
// rules against.
type MatchContext struct {
	CurrentFiles []string
	UserQuery    string
	SessionID    string
	AssistantID  string
	// ManualRules are rule names the user invoked explicitly via
	// @rulename tokens (see ExtractManualRules).
	ManualRules []string
}

// MatchResult pairs a rule with the human-readable reason it matched or
// was skipped.
type MatchResult struct {
	Rule   *Rule
	Reason string
}

var manualRulePattern = regexp.MustCompile(`(^|\s)@([A-Za-z0-9_-]+)`)

// ExtractManualRules pulls @rulename tokens out of a user query.
func ExtractManualRules(query string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range manualRulePattern.FindAllStringSubmatch(query, -1) {
		if name := m[2]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Match partitions rules into matched and skipped sets with reasons.
func Match(ruleSet []*Rule, ctx MatchContext) (matched, skipped []MatchResult) {
	manual := map[string]bool{}
	for _, n := range ctx.ManualRules {
		manual[n] = true
	}

	for _, r := range ruleSet {
		if !r.Enabled {
			skipped = append(skipped, MatchResult{Rule: r, Reason: "disabled"})
			continue
		}
		switch r.Inclusion {
		case InclusionAlways:
			matched = append(matched, MatchResult{Rule: r, Reason: "inclusion is always"})
		case InclusionManual:
			if manual[r.Name] {
				matched = append(matched, MatchResult{Rule: r, Reason: fmt.Sprintf("manually invoked via @%s", r.Name)})
			} else {
				skipped = append(skipped, MatchResult{Rule: r, Reason: "manual rule not invoked"})
			}
		case InclusionFileMatch:
			if file, ok := firstFileMatch(r.FileMatchPattern, ctx.CurrentFiles); ok {
				matched = append(matched, MatchResult{
					Rule:   r,
					Reason: fmt.Sprintf("pattern %q matched %s", r.FileMatchPattern, file),
				})
			} else {
				skipped = append(skipped, MatchResult{
					Rule:   r,
					Reason: fmt.Sprintf("pattern %q matched no current file", r.FileMatchPattern),
				})
			}
		default:
			skipped = append(skipped, MatchResult{Rule: r, Reason: fmt.Sprintf("unknown inclusion %q", r.Inclusion)})
		}
	}
	return matched, skipped
}

// firstFileMatch returns the first current file the glob matches,
// considering both the full path and the bare filename.
func firstFileMatch(pattern string, files []string) (string, bool) {
	for _, f := range files {
		if matchGlob(pattern, f) {
			return f, true
		}
	}
	return "", false
}

// matchGlob matches a single-segment glob against the full path and the
// basename. Patterns with a leading "**/" also match against every path
// suffix, so "**/*.go" matches "a/b/c.go".
func matchGlob(pattern, file string) bool {
	file = filepath.ToSlash(file)
	if ok, err := path.Match(pattern, file); err == nil && ok {
		return true
	}
	if ok, err := path.Match(pattern, path.Base(file)); err == nil && ok {
		return true
	}
	if rest, found := strings.CutPrefix(pattern, "**/"); found {
		segments := strings.Split(file, "/")
		for i := range segments {
			suffix := strings.Join(segments[i:], "/")
			if ok, err := path.Match(rest, suffix); err == nil && ok {
				return true
			}
		}
	}
	return false
}
