package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/llm"
)

func intp(i int) *int { return &i }

func TestBufferAssemblesFragments(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{Index: intp(0), ID: "tc-1", Name: "ls", ArgsFragment: `{"pa`})
	assert.False(t, done)

	call, done := b.add(&llm.ToolCallDelta{Index: intp(0), ArgsFragment: `th":"/tmp"}`})
	require.True(t, done)
	assert.Equal(t, "tc-1", call.ID)
	assert.Equal(t, "ls", call.Name)
	assert.Equal(t, map[string]any{"path": "/tmp"}, call.Args)
	assert.Equal(t, `{"path":"/tmp"}`, call.RawArgs)
}

func TestBufferKeysByIDWithoutIndex(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{ID: "tc-2", Name: "grep"})
	assert.False(t, done)

	call, done := b.add(&llm.ToolCallDelta{ID: "tc-2", ArgsFragment: `{"q":"x"}`})
	require.True(t, done)
	assert.Equal(t, "grep", call.Name)
}

func TestBufferKeylessFragmentJoinsLastEntry(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{ID: "tc-3", Name: "cat", ArgsFragment: `{"p":`})
	assert.False(t, done)

	// No index, no id: attaches to the open entry.
	call, done := b.add(&llm.ToolCallDelta{ArgsFragment: `"a"}`})
	require.True(t, done)
	assert.Equal(t, "tc-3", call.ID)
}

func TestBufferSkipsDuplicateFragments(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{Index: intp(0), ID: "tc-4", Name: "ls", ArgsFragment: `{"path":`})
	assert.False(t, done)
	// Provider re-sends the same fragment.
	_, done = b.add(&llm.ToolCallDelta{Index: intp(0), ArgsFragment: `{"path":`})
	assert.False(t, done)

	call, done := b.add(&llm.ToolCallDelta{Index: intp(0), ArgsFragment: `"/x"}`})
	require.True(t, done)
	assert.Equal(t, `{"path":"/x"}`, call.RawArgs)
}

func TestBufferDirectArgsObject(t *testing.T) {
	b := newToolCallBuffer()

	call, done := b.add(&llm.ToolCallDelta{
		ID:   "tc-5",
		Name: "search",
		Args: map[string]any{"query": "agents"},
	})
	require.True(t, done)
	assert.Equal(t, map[string]any{"query": "agents"}, call.Args)
	assert.JSONEq(t, `{"query":"agents"}`, call.RawArgs)
}

func TestBufferIncompleteWithoutName(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{Index: intp(0), ID: "tc-6", ArgsFragment: `{}`})
	assert.False(t, done)

	call, done := b.add(&llm.ToolCallDelta{Index: intp(0), Name: "noop"})
	require.True(t, done)
	assert.Empty(t, call.Args)
}

func TestBufferEntryDiscardedAfterCompletion(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{Index: intp(0), ID: "tc-7", Name: "ls", ArgsFragment: `{}`})
	require.True(t, done)

	// A late re-sent chunk for the same slot starts a fresh (incomplete)
	// entry instead of re-completing the old one.
	_, done = b.add(&llm.ToolCallDelta{Index: intp(0), ArgsFragment: `{}`})
	assert.False(t, done)
}

func TestBufferInterleavedCalls(t *testing.T) {
	b := newToolCallBuffer()

	_, done := b.add(&llm.ToolCallDelta{Index: intp(0), ID: "a", Name: "one", ArgsFragment: `{"n":`})
	assert.False(t, done)
	_, done = b.add(&llm.ToolCallDelta{Index: intp(1), ID: "b", Name: "two", ArgsFragment: `{"m":`})
	assert.False(t, done)

	first, done := b.add(&llm.ToolCallDelta{Index: intp(0), ArgsFragment: `1}`})
	require.True(t, done)
	assert.Equal(t, "a", first.ID)

	second, done := b.add(&llm.ToolCallDelta{Index: intp(1), ArgsFragment: `2}`})
	require.True(t, done)
	assert.Equal(t, "b", second.ID)
}
