package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dataagent-io/dataagent/pkg/llm"
)

// pendingCall accumulates partial tool-call fragments until the call is
// complete enough to announce.
type pendingCall struct {
	id   string
	name string

	// args is set when the provider delivered the arguments as a
	// complete object rather than string fragments.
	args map[string]any

	fragments strings.Builder
	seen      map[string]bool
}

// toolCallBuffer assembles streamed tool-call fragments. Entries are
// keyed by provider index when present, else by call id, else attached
// to the most recently opened entry. A call is complete once its id and
// name are known and its arguments form a valid JSON object (or were
// supplied directly as one); the entry is discarded on completion.
type toolCallBuffer struct {
	entries map[string]*pendingCall
	order   []string // insertion order, for keyless fragments
	autoSeq int
}

func newToolCallBuffer() *toolCallBuffer {
	return &toolCallBuffer{entries: make(map[string]*pendingCall)}
}

// keyFor picks the buffer key for a fragment: index, then id, then the
// most recent open entry, then a fresh auto key.
func (b *toolCallBuffer) keyFor(d *llm.ToolCallDelta) string {
	if d.Index != nil {
		return fmt.Sprintf("idx:%d", *d.Index)
	}
	if d.ID != "" {
		return "id:" + d.ID
	}
	if n := len(b.order); n > 0 {
		return b.order[n-1]
	}
	b.autoSeq++
	return fmt.Sprintf("auto:%d", b.autoSeq)
}

// add merges a fragment into the buffer. When the fragment completes a
// call, the assembled call is returned and its entry dropped.
func (b *toolCallBuffer) add(d *llm.ToolCallDelta) (ToolCall, bool) {
	key := b.keyFor(d)
	entry, ok := b.entries[key]
	if !ok {
		entry = &pendingCall{seen: make(map[string]bool)}
		b.entries[key] = entry
		b.order = append(b.order, key)
	}

	if d.ID != "" {
		entry.id = d.ID
	}
	if d.Name != "" {
		entry.name = d.Name
	}
	if d.Args != nil {
		entry.args = d.Args
	}
	// Some providers re-send fragments; only unique ones are appended.
	if d.ArgsFragment != "" && !entry.seen[d.ArgsFragment] {
		entry.seen[d.ArgsFragment] = true
		entry.fragments.WriteString(d.ArgsFragment)
	}

	call, done := entry.complete()
	if done {
		delete(b.entries, key)
		for i, k := range b.order {
			if k == key {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	return call, done
}

// complete checks whether the entry has an id, a name, and parseable
// arguments, and assembles the final call if so.
func (p *pendingCall) complete() (ToolCall, bool) {
	if p.id == "" || p.name == "" {
		return ToolCall{}, false
	}
	if p.args != nil {
		raw, err := json.Marshal(p.args)
		if err != nil {
			return ToolCall{}, false
		}
		return ToolCall{ID: p.id, Name: p.name, Args: p.args, RawArgs: string(raw)}, true
	}

	// An empty accumulator is not a complete object: providers send
	// "{}" explicitly for zero-argument calls.
	raw := p.fragments.String()
	if raw == "" {
		return ToolCall{}, false
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return ToolCall{}, false
	}
	return ToolCall{ID: p.id, Name: p.name, Args: args, RawArgs: raw}, true
}
