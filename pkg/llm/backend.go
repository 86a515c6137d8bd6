package llm

import "context"

// Backend is the streaming generation interface consumed by the agent
// pipeline. Stream returns a chunk channel and an error channel; both
// are closed when the call ends. At most one error is delivered.
type Backend interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
	Close() error
}
