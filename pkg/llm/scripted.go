package llm

import (
	"context"
	"sync"
)

// ScriptedRound is one pre-recorded model response used by
// ScriptedBackend.
type ScriptedRound struct {
	Chunks []Chunk
	Err    error
}

// ScriptedBackend replays pre-recorded rounds in order. Each Stream call
// consumes the next round; calls beyond the script return an empty
// stream. Intended for tests and offline runs.
type ScriptedBackend struct {
	mu       sync.Mutex
	rounds   []ScriptedRound
	next     int
	requests []Request
}

// NewScriptedBackend creates a backend replaying the given rounds.
func NewScriptedBackend(rounds ...ScriptedRound) *ScriptedBackend {
	return &ScriptedBackend{rounds: rounds}
}

// Requests returns a copy of every request received so far.
func (b *ScriptedBackend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Stream implements Backend.
func (b *ScriptedBackend) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	var round ScriptedRound
	if b.next < len(b.rounds) {
		round = b.rounds[b.next]
		b.next++
	}
	b.mu.Unlock()

	chunks := make(chan Chunk, len(round.Chunks))
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range round.Chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if round.Err != nil {
			errs <- round.Err
		}
	}()
	return chunks, errs
}

// Close implements Backend.
func (b *ScriptedBackend) Close() error { return nil }

// TextRound builds a round streaming the given text in one delta
// followed by a stop.
func TextRound(text string) ScriptedRound {
	return ScriptedRound{Chunks: []Chunk{
		{TextDelta: text},
		{FinishReason: "stop"},
		{Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}}
}

// ToolCallRound builds a round requesting a single tool call with the
// arguments split across two fragments.
func ToolCallRound(id, name, argsJSON string) ScriptedRound {
	idx := 0
	half := len(argsJSON) / 2
	return ScriptedRound{Chunks: []Chunk{
		{ToolCall: &ToolCallDelta{Index: &idx, ID: id, Name: name, ArgsFragment: argsJSON[:half]}},
		{ToolCall: &ToolCallDelta{Index: &idx, ArgsFragment: argsJSON[half:]}},
		{FinishReason: "tool_calls"},
		{Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}}
}
