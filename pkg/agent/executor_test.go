package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/rules"
)

// fakeTools is a scripted tool executor keyed by tool name.
type fakeTools struct {
	defs     []llm.ToolDef
	results  map[string]*ToolResult
	auto     map[string]bool
	executed []string
}

func (f *fakeTools) Execute(_ context.Context, call ToolCall) *ToolResult {
	f.executed = append(f.executed, call.Name)
	if r, ok := f.results[call.Name]; ok {
		out := *r
		out.CallID = call.ID
		return &out
	}
	return errorResult(call, "unknown tool: "+call.Name)
}

func (f *fakeTools) ListTools(context.Context) []llm.ToolDef { return f.defs }
func (f *fakeTools) AutoApproved(name string) bool           { return f.auto[name] }
func (f *fakeTools) Close() error                            { return nil }

func collect(t *testing.T, ch <-chan models.Event) []models.Event {
	t.Helper()
	var out []models.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("event stream did not close; got %d events", len(out))
		}
	}
}

func eventTypes(events []models.Event) []models.EventType {
	types := make([]models.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// requireOneTerminator asserts the exactly-one-terminator contract.
func requireOneTerminator(t *testing.T, events []models.Event) {
	t.Helper()
	terminators := 0
	for _, ev := range events {
		if ev.Type == models.EventTypeDone || ev.Type == models.EventTypeError {
			terminators++
		}
	}
	require.Equal(t, 1, terminators, "stream must carry exactly one done or error")
	last := events[len(events)-1]
	assert.Contains(t, []models.EventType{models.EventTypeDone, models.EventTypeError}, last.Type)
}

func TestExecutePlainChat(t *testing.T) {
	backend := llm.NewScriptedBackend(llm.TextRound("Hello"))
	exec := NewExecutor(ExecutorOptions{
		Backend: backend,
		Tools:   &fakeTools{},
	})

	events := collect(t, exec.Execute(context.Background(), "s1", "hi"))
	require.Equal(t, []models.EventType{
		models.EventTypeText,
		models.EventTypeText,
		models.EventTypeDone,
	}, eventTypes(events))

	first := events[0].Payload.(models.TextPayload)
	assert.Equal(t, "Hello", first.Content)
	assert.False(t, first.IsFinal)

	final := events[1].Payload.(models.TextPayload)
	assert.Empty(t, final.Content)
	assert.True(t, final.IsFinal)

	done := events[2].Payload.(models.DonePayload)
	assert.False(t, done.Cancelled)
	require.NotNil(t, done.TokenUsage)
	assert.Equal(t, 15, done.TokenUsage.TotalTokens)

	requireOneTerminator(t, events)
}

func TestExecuteToolApprovalAccepted(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{"path":"/workspace"}`),
		llm.TextRound("Done"),
	)
	tools := &fakeTools{
		defs:    []llm.ToolDef{{Name: "ls", Description: "List files"}},
		results: map[string]*ToolResult{"ls": {Name: "ls", Content: ".\n..\nfile.txt"}},
	}
	correlator := hitl.NewCorrelator(5 * time.Second)
	exec := NewExecutor(ExecutorOptions{
		Backend:    backend,
		Tools:      tools,
		Correlator: correlator,
	})

	stream := exec.Execute(context.Background(), "s1", "list files")
	var events []models.Event
	for ev := range stream {
		events = append(events, ev)
		if req, ok := ev.Payload.(models.HITLRequestPayload); ok {
			require.True(t, correlator.Resolve("s1", req.InterruptID, hitl.Approve()))
		}
	}

	require.Equal(t, []models.EventType{
		models.EventTypeToolCall,
		models.EventTypeHITLRequest,
		models.EventTypeToolResult,
		models.EventTypeText,
		models.EventTypeText,
		models.EventTypeDone,
	}, eventTypes(events))

	call := events[0].Payload.(models.ToolCallPayload)
	assert.Equal(t, "ls", call.ToolName)
	assert.Equal(t, map[string]any{"path": "/workspace"}, call.ToolArgs)
	assert.Equal(t, "tc-1", call.ToolCallID)

	req := events[1].Payload.(models.HITLRequestPayload)
	require.Len(t, req.ActionRequests, 1)
	assert.Equal(t, "ls", req.ActionRequests[0].Name)
	assert.Equal(t, "List files", req.ActionRequests[0].Description)

	result := events[2].Payload.(models.ToolResultPayload)
	assert.Equal(t, "tc-1", result.ToolCallID)
	assert.Equal(t, ".\n..\nfile.txt", result.Result)
	assert.Equal(t, models.StatusSuccess, result.Status)

	assert.False(t, events[5].Payload.(models.DonePayload).Cancelled)
	requireOneTerminator(t, events)
}

func TestExecuteToolApprovalRejected(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{"path":"/workspace"}`),
		llm.TextRound("never reached"),
	)
	tools := &fakeTools{
		results: map[string]*ToolResult{"ls": {Name: "ls", Content: "x"}},
	}
	correlator := hitl.NewCorrelator(5 * time.Second)
	exec := NewExecutor(ExecutorOptions{
		Backend:    backend,
		Tools:      tools,
		Correlator: correlator,
	})

	stream := exec.Execute(context.Background(), "s1", "list files")
	var events []models.Event
	for ev := range stream {
		events = append(events, ev)
		if req, ok := ev.Payload.(models.HITLRequestPayload); ok {
			correlator.Resolve("s1", req.InterruptID, hitl.Reject("not allowed"))
		}
	}

	require.Equal(t, []models.EventType{
		models.EventTypeToolCall,
		models.EventTypeHITLRequest,
		models.EventTypeDone,
	}, eventTypes(events))
	assert.True(t, events[2].Payload.(models.DonePayload).Cancelled)
	assert.Empty(t, tools.executed, "rejected tools must not run")
	requireOneTerminator(t, events)
}

func TestExecuteApprovalTimeout(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{}`),
	)
	correlator := hitl.NewCorrelator(30 * time.Millisecond)
	tools := &fakeTools{results: map[string]*ToolResult{"ls": {Name: "ls"}}}
	exec := NewExecutor(ExecutorOptions{
		Backend:    backend,
		Tools:      tools,
		Correlator: correlator,
	})

	events := collect(t, exec.Execute(context.Background(), "s1", "list"))
	last := events[len(events)-1]
	require.Equal(t, models.EventTypeDone, last.Type)
	assert.True(t, last.Payload.(models.DonePayload).Cancelled)
	assert.Empty(t, tools.executed)
}

func TestExecuteAutoApproveWithoutCorrelator(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{"path":"."}`),
		llm.TextRound("Done"),
	)
	tools := &fakeTools{results: map[string]*ToolResult{"ls": {Name: "ls", Content: "file.txt"}}}
	exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: tools})

	events := collect(t, exec.Execute(context.Background(), "s1", "list"))
	types := eventTypes(events)
	assert.NotContains(t, types, models.EventTypeHITLRequest)
	assert.Contains(t, types, models.EventTypeToolResult)
	assert.Equal(t, []string{"ls"}, tools.executed)
	requireOneTerminator(t, events)
}

func TestExecuteAutoApprovedToolSkipsRequest(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{"path":"."}`),
		llm.TextRound("Done"),
	)
	tools := &fakeTools{
		results: map[string]*ToolResult{"ls": {Name: "ls", Content: "file.txt"}},
		auto:    map[string]bool{"ls": true},
	}
	exec := NewExecutor(ExecutorOptions{
		Backend:    backend,
		Tools:      tools,
		Correlator: hitl.NewCorrelator(5 * time.Second),
	})

	events := collect(t, exec.Execute(context.Background(), "s1", "list"))
	assert.NotContains(t, eventTypes(events), models.EventTypeHITLRequest)
	assert.Equal(t, []string{"ls"}, tools.executed)
}

func TestExecuteHumanToolForwardsArgs(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "human", `{"interaction_type":"choice","question":"Deploy where?","options":["staging","prod"]}`),
		llm.TextRound("Deploying to staging."),
	)
	tools := &fakeTools{
		defs:    []llm.ToolDef{{Name: "human", Description: "Ask the user a question"}},
		results: map[string]*ToolResult{"human": {Name: "human", Content: "staging"}},
	}
	correlator := hitl.NewCorrelator(5 * time.Second)
	exec := NewExecutor(ExecutorOptions{
		Backend:    backend,
		Tools:      tools,
		Correlator: correlator,
	})

	stream := exec.Execute(context.Background(), "s1", "deploy")
	var req *models.HITLRequestPayload
	for ev := range stream {
		if p, ok := ev.Payload.(models.HITLRequestPayload); ok {
			req = &p
			require.True(t, correlator.Resolve("s1", p.InterruptID, hitl.Approve()))
		}
	}

	// The human tool's args ride along verbatim so the client can render
	// the interaction.
	require.NotNil(t, req)
	assert.Equal(t, map[string]any{
		"interaction_type": "choice",
		"question":         "Deploy where?",
		"options":          []any{"staging", "prod"},
	}, req.HITLArgs)
	require.Len(t, req.ActionRequests, 1)
	assert.Equal(t, "human", req.ActionRequests[0].Name)
}

func TestExecuteTodoWriteEmitsUpdate(t *testing.T) {
	ws := newTestWorkspace(t)
	args := `{"todos":[{"content":"read the config","status":"completed"},{"content":"patch the loader","status":"in_progress"}]}`
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "todo_write", args),
		llm.ToolCallRound("tc-2", "todo_write", args),
		llm.TextRound("Plan updated."),
	)
	exec := NewExecutor(ExecutorOptions{
		Backend:   backend,
		Tools:     NewLocalExecutor(ws),
		Workspace: ws,
	})

	events := collect(t, exec.Execute(context.Background(), "s1", "plan it"))

	var updates []models.TodoUpdatePayload
	for _, ev := range events {
		if p, ok := ev.Payload.(models.TodoUpdatePayload); ok {
			updates = append(updates, p)
		}
	}
	require.Len(t, updates, 1, "an unchanged list must not re-emit")
	require.Len(t, updates[0].Todos, 2)
	assert.Equal(t, models.TodoItem{Content: "read the config", Status: TodoStatusCompleted}, updates[0].Todos[0])
	assert.Equal(t, models.TodoItem{Content: "patch the loader", Status: TodoStatusInProgress}, updates[0].Todos[1])
	requireOneTerminator(t, events)
}

func TestExecuteBackendError(t *testing.T) {
	backend := llm.NewScriptedBackend(llm.ScriptedRound{Err: errors.New("model unavailable")})
	exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: &fakeTools{}})

	events := collect(t, exec.Execute(context.Background(), "s1", "hi"))
	require.Len(t, events, 1)
	require.Equal(t, models.EventTypeError, events[0].Type)
	p := events[0].Payload.(models.ErrorPayload)
	assert.Equal(t, "model unavailable", p.Error)
	assert.False(t, p.Recoverable)
}

func TestExecuteToolCallUniqueness(t *testing.T) {
	idx := 0
	// The provider re-sends the completed call's chunks within the round.
	round := llm.ScriptedRound{Chunks: []llm.Chunk{
		{ToolCall: &llm.ToolCallDelta{Index: &idx, ID: "tc-1", Name: "ls", ArgsFragment: `{"path":"."}`}},
		{ToolCall: &llm.ToolCallDelta{Index: &idx, ID: "tc-1", Name: "ls", ArgsFragment: `{"path":"."}`}},
		{FinishReason: "tool_calls"},
	}}
	tools := &fakeTools{results: map[string]*ToolResult{"ls": {Name: "ls", Content: "x"}}}
	backend := llm.NewScriptedBackend(round, llm.TextRound("Done"))
	exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: tools})

	events := collect(t, exec.Execute(context.Background(), "s1", "list"))
	callEvents := 0
	for _, ev := range events {
		if ev.Type == models.EventTypeToolCall {
			callEvents++
		}
	}
	assert.Equal(t, 1, callEvents)
	assert.Equal(t, []string{"ls"}, tools.executed)
}

func TestExecuteToolResultCorrelation(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{"path":"."}`),
		llm.TextRound("Done"),
	)
	tools := &fakeTools{results: map[string]*ToolResult{"ls": {Name: "ls", Content: "x"}}}
	exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: tools})

	events := collect(t, exec.Execute(context.Background(), "s1", "list"))
	announcedIDs := map[string]bool{}
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case models.ToolCallPayload:
			announcedIDs[p.ToolCallID] = true
		case models.ToolResultPayload:
			assert.True(t, announcedIDs[p.ToolCallID],
				"tool_result %s has no earlier tool_call", p.ToolCallID)
		}
	}
}

func TestExecutePathEscapeFileOperation(t *testing.T) {
	ws := newTestWorkspace(t)
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-9", "read_file", `{"path":"../../etc/passwd"}`),
		llm.TextRound("The path is outside the workspace."),
	)
	exec := NewExecutor(ExecutorOptions{
		Backend:   backend,
		Tools:     NewLocalExecutor(ws),
		Workspace: ws,
	})

	events := collect(t, exec.Execute(context.Background(), "s1", "read that file"))

	var result *models.ToolResultPayload
	var fileOp *models.FileOperationPayload
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case models.ToolResultPayload:
			result = &p
		case models.FileOperationPayload:
			fileOp = &p
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, models.StatusError, result.Status)

	require.NotNil(t, fileOp)
	assert.Equal(t, "read_file", fileOp.Operation)
	assert.Equal(t, models.StatusError, fileOp.Status)
	assert.Equal(t, models.FileMetrics{}, fileOp.Metrics)
	requireOneTerminator(t, events)
}

func TestExecuteWriteFileEmitsFileOperation(t *testing.T) {
	ws := newTestWorkspace(t)
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "write_file", `{"path":"out.txt","content":"a\nb\n"}`),
		llm.TextRound("Written."),
	)
	exec := NewExecutor(ExecutorOptions{
		Backend:   backend,
		Tools:     NewLocalExecutor(ws),
		Workspace: ws,
	})

	events := collect(t, exec.Execute(context.Background(), "s1", "write it"))

	var fileOp *models.FileOperationPayload
	for _, ev := range events {
		if p, ok := ev.Payload.(models.FileOperationPayload); ok {
			fileOp = &p
		}
	}
	require.NotNil(t, fileOp)
	assert.Equal(t, "write_file", fileOp.Operation)
	assert.Equal(t, models.StatusSuccess, fileOp.Status)
	assert.Equal(t, 2, fileOp.Metrics.LinesWritten)
	assert.Equal(t, 2, fileOp.Metrics.LinesAdded)
	assert.NotEmpty(t, fileOp.Diff)
}

func TestExecuteRoundLimit(t *testing.T) {
	// Every round requests another tool call; the loop must stop.
	rounds := make([]llm.ScriptedRound, 5)
	for i := range rounds {
		rounds[i] = llm.ToolCallRound(fmt.Sprintf("tc-%d", i), "ls", `{"path":"."}`)
	}
	tools := &fakeTools{results: map[string]*ToolResult{"ls": {Name: "ls", Content: "x"}}}
	backend := llm.NewScriptedBackend(rounds...)
	exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: tools, MaxRounds: 3})

	events := collect(t, exec.Execute(context.Background(), "s1", "loop"))
	last := events[len(events)-1]
	require.Equal(t, models.EventTypeError, last.Type)
	assert.Contains(t, last.Payload.(models.ErrorPayload).Error, "maximum")
	requireOneTerminator(t, events)
}

func TestExecuteConversationHistory(t *testing.T) {
	backend := llm.NewScriptedBackend(
		llm.ToolCallRound("tc-1", "ls", `{"path":"."}`),
		llm.TextRound("Done"),
	)
	tools := &fakeTools{results: map[string]*ToolResult{"ls": {Name: "ls", Content: "file.txt"}}}
	exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: tools})

	collect(t, exec.Execute(context.Background(), "s1", "list"))

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "s1", reqs[0].SessionID)

	// Second round carries the assistant tool call and its result.
	second := reqs[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, llm.RoleUser, second[0].Role)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	require.Len(t, second[1].ToolCalls, 1)
	assert.Equal(t, "tc-1", second[1].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, second[2].Role)
	assert.Equal(t, "file.txt", second[2].Content)
	assert.Equal(t, "tc-1", second[2].ToolCallID)
}

func TestExecuteSystemPromptFromMiddleware(t *testing.T) {
	backend := llm.NewScriptedBackend(llm.TextRound("ok"))
	mw := &RulesMiddleware{
		SessionRules: []*rules.Rule{sessionRule("style", "Be terse.", 50)},
	}
	exec := NewExecutor(ExecutorOptions{
		Backend:     backend,
		Tools:       &fakeTools{},
		Middlewares: []Middleware{mw},
	})

	collect(t, exec.Execute(context.Background(), "s1", "hi"))

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, llm.RoleSystem, reqs[0].Messages[0].Role)
	assert.Contains(t, reqs[0].Messages[0].Content, "Be terse.")
}

func TestExecuteCancelledContext(t *testing.T) {
	// Repeated because the defect mode is a race: a terminator dropped
	// when cancellation and the final send contend.
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		backend := llm.NewScriptedBackend(llm.ScriptedRound{Err: context.Canceled})
		exec := NewExecutor(ExecutorOptions{Backend: backend, Tools: &fakeTools{}})

		// Even with the context already gone the stream must close after
		// exactly one terminator, and a cancelled turn ends in
		// done(cancelled=true).
		stream := exec.Execute(ctx, "s1", "hi")
		deadline := time.After(5 * time.Second)
		terminators := 0
		cancelled := false
	drain:
		for {
			select {
			case ev, ok := <-stream:
				if !ok {
					break drain
				}
				switch p := ev.Payload.(type) {
				case models.DonePayload:
					terminators++
					cancelled = p.Cancelled
				case models.ErrorPayload:
					terminators++
				}
			case <-deadline:
				t.Fatal("stream did not close after cancellation")
			}
		}
		require.Equal(t, 1, terminators, "run %d: stream must end with exactly one terminator", i)
		assert.True(t, cancelled, "run %d: cancelled turn must report done(cancelled=true)", i)
	}
}
