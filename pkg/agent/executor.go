package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

// DefaultMaxRounds bounds the tool-call loop of a single execution.
const DefaultMaxRounds = 20

// ExecutorOptions wires an Executor.
type ExecutorOptions struct {
	Backend llm.Backend
	Tools   ToolExecutor

	// Workspace enables file-operation tracking; nil disables it.
	Workspace *workspace.Workspace

	// Correlator gates tool calls on human approval. Nil means every
	// tool call is auto-approved.
	Correlator *hitl.Correlator

	// Notifier is told about approvals parked waiting for a human.
	Notifier hitl.Notifier

	// History loads the session's prior conversation, ending with the
	// current user message. Nil starts every turn from the user input
	// alone.
	History func(ctx context.Context, sessionID string) ([]llm.Message, error)

	Middlewares []Middleware
	AssistantID string

	MaxRounds    int
	MaxDiffLines int
	Debug        bool
	Logger       *slog.Logger
}

// Executor runs one agent conversation turn per Execute call, streaming
// events as they happen.
type Executor struct {
	backend      llm.Backend
	tools        ToolExecutor
	ws           *workspace.Workspace
	correlator   *hitl.Correlator
	notifier     hitl.Notifier
	history      func(ctx context.Context, sessionID string) ([]llm.Message, error)
	middlewares  []Middleware
	assistantID  string
	maxRounds    int
	maxDiffLines int
	debug        bool
	logger       *slog.Logger
}

// NewExecutor creates an executor from options, applying defaults.
func NewExecutor(opts ExecutorOptions) *Executor {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		backend:      opts.Backend,
		tools:        opts.Tools,
		ws:           opts.Workspace,
		correlator:   opts.Correlator,
		notifier:     opts.Notifier,
		history:      opts.History,
		middlewares:  opts.Middlewares,
		assistantID:  opts.AssistantID,
		maxRounds:    maxRounds,
		maxDiffLines: opts.MaxDiffLines,
		debug:        opts.Debug,
		logger:       logger,
	}
}

// Execute runs one turn for the session and returns the event stream.
// The stream always terminates with exactly one done or one error event
// and is then closed.
func (e *Executor) Execute(ctx context.Context, sessionID, userInput string) <-chan models.Event {
	events := make(chan models.Event, 64)
	go func() {
		defer close(events)
		e.run(ctx, sessionID, userInput, events)
	}()
	return events
}

func (e *Executor) run(ctx context.Context, sessionID, userInput string, events chan<- models.Event) {
	terminated := false
	emit := func(p models.Payload) {
		select {
		case events <- models.New(p):
		case <-ctx.Done():
		}
	}
	// Terminal events must not race ctx cancellation: the stream ends
	// with exactly one done or error even when the turn was cancelled.
	// The send is safe unconditionally; the channel is buffered and the
	// single consumer drains it until close.
	emitFinal := func(p models.Payload) {
		events <- models.New(p)
	}
	fail := func(msg string) {
		terminated = true
		emitFinal(models.ErrorPayload{Error: msg, Code: models.ErrCodeInternal, Recoverable: false})
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Execution panicked",
				"session_id", sessionID, "panic", r)
			if !terminated {
				fail(fmt.Sprintf("internal error: %v", r))
			}
		}
	}()

	tracker := newFileOpTracker(e.ws, e.maxDiffLines)
	todos := &todoTracker{}
	announced := make(map[string]bool)
	var totalUsage llm.Usage

	finish := func(cancelled bool) {
		terminated = true
		payload := models.DonePayload{Cancelled: cancelled}
		if totalUsage.TotalTokens > 0 {
			payload.TokenUsage = &models.TokenUsage{
				InputTokens:  totalUsage.PromptTokens,
				OutputTokens: totalUsage.CompletionTokens,
				TotalTokens:  totalUsage.TotalTokens,
			}
		}
		emitFinal(payload)
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: userInput}}
	if e.history != nil {
		prior, err := e.history(ctx, sessionID)
		switch {
		case err != nil:
			e.logger.Warn("Failed to load conversation history, starting fresh",
				"session_id", sessionID, "error", err)
		case len(prior) > 0:
			messages = prior
		}
	}

	for round := 0; round < e.maxRounds; round++ {
		toolDefs := e.tools.ListTools(ctx)
		req := llm.Request{
			SessionID: sessionID,
			Messages:  e.withSystemPrompt(ctx, sessionID, userInput, messages),
			Tools:     toolDefs,
		}

		chunks, errs := e.backend.Stream(ctx, req)
		buffer := newToolCallBuffer()
		var text strings.Builder
		var calls []ToolCall

		for chunk := range chunks {
			switch {
			case chunk.TextDelta != "":
				text.WriteString(chunk.TextDelta)
				emit(models.TextPayload{Content: chunk.TextDelta, IsFinal: false})
			case chunk.ToolCall != nil:
				call, done := buffer.add(chunk.ToolCall)
				if !done || announced[call.ID] {
					continue
				}
				announced[call.ID] = true
				emit(models.ToolCallPayload{
					ToolName:   call.Name,
					ToolArgs:   call.Args,
					ToolCallID: call.ID,
				})
				tracker.Track(call)
				calls = append(calls, call)
			case chunk.Usage != nil:
				totalUsage.Add(*chunk.Usage)
			}
		}
		if err := <-errs; err != nil {
			if errors.Is(err, context.Canceled) {
				finish(true)
				return
			}
			e.logger.Error("Model stream failed",
				"session_id", sessionID, "round", round, "error", err)
			fail(err.Error())
			return
		}
		if text.Len() > 0 {
			emit(models.TextPayload{Content: "", IsFinal: true})
		}

		if len(calls) == 0 {
			finish(false)
			return
		}

		if !e.approve(ctx, sessionID, calls, toolDefs, emit) {
			finish(true)
			return
		}

		messages = append(messages, assistantMessage(text.String(), calls))
		for _, call := range calls {
			result := e.tools.Execute(ctx, call)
			status := models.StatusSuccess
			if result.IsError {
				status = models.StatusError
			}
			emit(models.ToolResultPayload{
				ToolCallID: call.ID,
				Result:     result.Content,
				Status:     status,
			})
			if payload, ok := tracker.Complete(call.ID, result); ok {
				emit(payload)
			}
			if call.Name == ToolTodoWrite && !result.IsError {
				if list, changed := todos.Update(call.Args); changed {
					emit(models.TodoUpdatePayload{Todos: list})
				}
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result.Content,
				ToolCallID: call.ID,
			})
		}
	}

	e.logger.Warn("Execution exceeded round limit",
		"session_id", sessionID, "max_rounds", e.maxRounds)
	fail(fmt.Sprintf("exceeded the maximum of %d tool rounds", e.maxRounds))
}

// withSystemPrompt runs the middleware chain and prepends the resulting
// system message. A failing middleware is skipped, never fatal.
func (e *Executor) withSystemPrompt(ctx context.Context, sessionID, userInput string, messages []llm.Message) []llm.Message {
	p := &PromptContext{
		SessionID:   sessionID,
		AssistantID: e.assistantID,
		UserQuery:   userInput,
		Debug:       e.debug,
	}
	if e.ws != nil {
		if files, err := e.ws.ListDir(""); err == nil {
			p.CurrentFiles = files
		}
	}
	for _, mw := range e.middlewares {
		if err := mw.Apply(ctx, p); err != nil {
			e.logger.Warn("Prompt middleware failed",
				"middleware", mw.Name(), "session_id", sessionID, "error", err)
		}
	}

	system := p.SystemPrompt()
	if system == "" {
		return messages
	}
	return append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, messages...)
}

// approve gates the round's tool calls on a human decision. Calls that
// are auto-approved by their executor never park; with no correlator
// attached everything is auto-approved.
func (e *Executor) approve(ctx context.Context, sessionID string, calls []ToolCall, toolDefs []llm.ToolDef, emit func(models.Payload)) bool {
	if e.correlator == nil {
		return true
	}
	descriptions := make(map[string]string, len(toolDefs))
	for _, def := range toolDefs {
		descriptions[def.Name] = def.Description
	}

	var actions []models.ActionRequest
	for _, call := range calls {
		if e.tools.AutoApproved(call.Name) {
			continue
		}
		actions = append(actions, models.ActionRequest{
			Name:        call.Name,
			Args:        call.Args,
			Description: descriptions[call.Name],
		})
	}
	if len(actions) == 0 {
		return true
	}

	req := models.HITLRequestPayload{
		InterruptID:    uuid.NewString(),
		ActionRequests: actions,
	}
	// A human tool call is the agent asking the user directly; its
	// arguments (question, options) ride along on the interrupt so the
	// client can render the prompt.
	for _, call := range calls {
		if call.Name == "human" {
			req.HITLArgs = call.Args
			break
		}
	}
	// Register before emitting so a fast decision always finds its slot.
	slot := e.correlator.Register(sessionID, req.InterruptID)
	if slot == nil {
		return false
	}
	emit(req)
	if e.notifier != nil {
		e.notifier.NotifyPendingApproval(ctx, sessionID, req)
	}

	decision := e.correlator.Wait(ctx, slot)
	if decision == nil || !decision.Approved {
		e.logger.Info("Tool calls not approved",
			"session_id", sessionID, "interrupt_id", req.InterruptID,
			"actions", len(actions))
		return false
	}
	return true
}

func assistantMessage(text string, calls []ToolCall) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant, Content: text}
	for _, call := range calls {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.RawArgs,
		})
	}
	return msg
}
