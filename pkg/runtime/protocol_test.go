package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/models"
)

type fakeRunner struct {
	fn func(ctx context.Context, sessionID, input string) <-chan models.Event
}

func (r *fakeRunner) Execute(ctx context.Context, sessionID, input string) <-chan models.Event {
	return r.fn(ctx, sessionID, input)
}

// textRunner emits one text block and a done event.
func textRunner(text string) *fakeRunner {
	return &fakeRunner{fn: func(_ context.Context, _, _ string) <-chan models.Event {
		ch := make(chan models.Event, 4)
		ch <- models.New(models.TextPayload{Content: text})
		ch <- models.New(models.TextPayload{Content: "", IsFinal: true})
		ch <- models.New(models.DonePayload{})
		close(ch)
		return ch
	}}
}

// approvalRunner mimics the executor's approval round: announce a tool
// call, park on the correlator, then finish according to the decision.
func approvalRunner(correlator *hitl.Correlator) *fakeRunner {
	return &fakeRunner{fn: func(ctx context.Context, sessionID, _ string) <-chan models.Event {
		ch := make(chan models.Event, 8)
		go func() {
			defer close(ch)
			ch <- models.New(models.ToolCallPayload{
				ToolName:   "ls",
				ToolArgs:   map[string]any{"path": "/workspace"},
				ToolCallID: "tc-1",
			})
			slot := correlator.Register(sessionID, "ii-1")
			ch <- models.New(models.HITLRequestPayload{
				InterruptID:    "ii-1",
				ActionRequests: []models.ActionRequest{{Name: "ls", Args: map[string]any{"path": "/workspace"}}},
			})
			decision := correlator.Wait(ctx, slot)
			if decision == nil || !decision.Approved {
				ch <- models.New(models.DonePayload{Cancelled: true})
				return
			}
			ch <- models.New(models.ToolResultPayload{
				ToolCallID: "tc-1",
				Result:     ".\n..\nfile.txt",
				Status:     models.StatusSuccess,
			})
			ch <- models.New(models.TextPayload{Content: "Done"})
			ch <- models.New(models.TextPayload{Content: "", IsFinal: true})
			ch <- models.New(models.DonePayload{})
		}()
		return ch
	}}
}

func connectSession(t *testing.T, m *Manager, sessionID string) *fakeTransport {
	t.Helper()
	tr := newFakeTransport()
	require.True(t, m.Connect(tr, sessionID))
	return tr
}

func lastEvent(tr *fakeTransport) models.Event {
	events := tr.events()
	return events[len(events)-1]
}

func waitForType(t *testing.T, tr *fakeTransport, typ models.EventType) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, et := range tr.eventTypes() {
			if et == typ {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "missing %s event", typ)
}

func TestHandleMessageInvalid(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("hi"))
	tr := connectSession(t, m, "s1")

	for _, raw := range []string{"not json", "{}", `{"payload":{}}`} {
		h.HandleMessage(context.Background(), "s1", []byte(raw))
		ev := lastEvent(tr)
		require.Equal(t, models.EventTypeError, ev.Type, "input %q", raw)
		p := ev.Payload.(models.ErrorPayload)
		assert.Equal(t, models.ErrCodeInvalidMessage, p.Code)
		assert.True(t, p.Recoverable)
	}
}

func TestHandleMessageEmptyChat(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("hi"))
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"   "}}`))
	p := lastEvent(tr).Payload.(models.ErrorPayload)
	assert.Equal(t, models.ErrCodeEmptyMessage, p.Code)
}

func TestHandleMessageUnknownType(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("hi"))
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"subscribe","payload":{}}`))
	p := lastEvent(tr).Payload.(models.ErrorPayload)
	assert.Equal(t, models.ErrCodeUnknownMessageType, p.Code)
}

func TestHandleMessagePing(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("hi"))
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"ping"}`))
	assert.Equal(t, models.EventTypePong, lastEvent(tr).Type)
}

func TestChatForwardsEvents(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("Hello"))
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"hi"}}`))
	waitForType(t, tr, models.EventTypeDone)

	require.Equal(t, []models.EventType{
		models.EventTypeConnected,
		models.EventTypeText,
		models.EventTypeText,
		models.EventTypeDone,
	}, tr.eventTypes())
	assert.False(t, lastEvent(tr).Payload.(models.DonePayload).Cancelled)
}

func TestChatRejectedWhileRunning(t *testing.T) {
	m := newTestManager(10)
	blocking := &fakeRunner{fn: func(ctx context.Context, _, _ string) <-chan models.Event {
		ch := make(chan models.Event)
		go func() {
			<-ctx.Done()
			ch <- models.New(models.DonePayload{Cancelled: true})
			close(ch)
		}()
		return ch
	}}
	h := NewSessionHandler(m, blocking)
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"first"}}`))
	require.Eventually(t, func() bool { return m.HasTask("s1") }, time.Second, 5*time.Millisecond)

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"second"}}`))
	p := lastEvent(tr).Payload.(models.ErrorPayload)
	assert.Equal(t, models.ErrCodeInvalidMessage, p.Code)

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"cancel"}`))
	waitForType(t, tr, models.EventTypeDone)
}

func TestApprovalAccepted(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, approvalRunner(m.correlator))
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"list files"}}`))
	waitForType(t, tr, models.EventTypeHITLRequest)

	h.HandleMessage(context.Background(), "s1",
		[]byte(`{"type":"hitl_decision","payload":{"decisions":[{"type":"approve"}]}}`))
	waitForType(t, tr, models.EventTypeDone)

	require.Equal(t, []models.EventType{
		models.EventTypeConnected,
		models.EventTypeToolCall,
		models.EventTypeHITLRequest,
		models.EventTypeToolResult,
		models.EventTypeText,
		models.EventTypeText,
		models.EventTypeDone,
	}, tr.eventTypes())

	events := tr.events()
	result := events[3].Payload.(models.ToolResultPayload)
	assert.Equal(t, "tc-1", result.ToolCallID)
	assert.Equal(t, ".\n..\nfile.txt", result.Result)
	assert.False(t, lastEvent(tr).Payload.(models.DonePayload).Cancelled)
}

func TestApprovalRejected(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, approvalRunner(m.correlator))
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"list files"}}`))
	waitForType(t, tr, models.EventTypeHITLRequest)

	h.HandleMessage(context.Background(), "s1",
		[]byte(`{"type":"hitl_decision","payload":{"decisions":[{"type":"reject"}]}}`))
	waitForType(t, tr, models.EventTypeDone)

	types := tr.eventTypes()
	assert.NotContains(t, types, models.EventTypeToolResult)
	assert.True(t, lastEvent(tr).Payload.(models.DonePayload).Cancelled)
}

func TestDecisionConsolidation(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("hi"))
	connectSession(t, m, "s1")

	result := make(chan *hitl.Decision, 1)
	go func() { result <- m.WaitForDecision("s1") }()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.decisions["s1"] != nil
	}, time.Second, 5*time.Millisecond)

	// One rejection rejects the whole batch.
	h.HandleMessage(context.Background(), "s1",
		[]byte(`{"type":"hitl_decision","payload":{"decisions":[{"type":"approve"},{"type":"reject","message":"too risky"}]}}`))

	decision := <-result
	require.NotNil(t, decision)
	assert.False(t, decision.Approved)
	assert.Equal(t, "too risky", decision.Message)
}

func TestDecisionAutoApproveAll(t *testing.T) {
	m := newTestManager(10)
	// Two sequential approval rounds in one task; only the first may
	// reach the client.
	runner := &fakeRunner{fn: func(ctx context.Context, sessionID, _ string) <-chan models.Event {
		ch := make(chan models.Event, 8)
		go func() {
			defer close(ch)
			for _, id := range []string{"ii-1", "ii-2"} {
				slot := m.correlator.Register(sessionID, id)
				ch <- models.New(models.HITLRequestPayload{
					InterruptID:    id,
					ActionRequests: []models.ActionRequest{{Name: "write_file", Args: map[string]any{"path": "a.txt"}}},
				})
				decision := m.correlator.Wait(ctx, slot)
				if decision == nil || !decision.Approved {
					ch <- models.New(models.DonePayload{Cancelled: true})
					return
				}
			}
			ch <- models.New(models.DonePayload{})
		}()
		return ch
	}}
	h := NewSessionHandler(m, runner)
	tr := connectSession(t, m, "s1")

	h.HandleMessage(context.Background(), "s1", []byte(`{"type":"chat","payload":{"content":"do it"}}`))
	waitForType(t, tr, models.EventTypeHITLRequest)

	// auto_approve_all approves the pending request and arms the session;
	// the second request resolves without another client decision.
	h.HandleMessage(context.Background(), "s1",
		[]byte(`{"type":"hitl_decision","payload":{"decisions":[{"type":"auto_approve_all"}]}}`))
	waitForType(t, tr, models.EventTypeDone)

	assert.False(t, lastEvent(tr).Payload.(models.DonePayload).Cancelled)
	assert.True(t, m.AutoApproved("s1"))

	m.Disconnect("s1")
	assert.False(t, m.AutoApproved("s1"), "the grant must not outlive the connection")
}

func TestHandleSessionLifecycle(t *testing.T) {
	m := newTestManager(10)
	h := NewSessionHandler(m, textRunner("hi"))
	tr := newFakeTransport()

	handlerDone := make(chan struct{})
	go func() {
		h.HandleSession(context.Background(), tr, "s1")
		close(handlerDone)
	}()

	require.Eventually(t, func() bool { return m.Connected("s1") },
		time.Second, 5*time.Millisecond)

	tr.incoming <- []byte(`{"type":"ping"}`)
	waitForType(t, tr, models.EventTypePong)

	close(tr.incoming)
	select {
	case <-handlerDone:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit on closed transport")
	}
	assert.False(t, m.Connected("s1"))
}

func TestHandleSessionCapacityRefused(t *testing.T) {
	m := newTestManager(1)
	h := NewSessionHandler(m, textRunner("hi"))
	connectSession(t, m, "s1")

	refused := newFakeTransport()
	done := make(chan struct{})
	go func() {
		h.HandleSession(context.Background(), refused, "s2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refused session did not return immediately")
	}
	closed, _, reason := refused.isClosed()
	assert.True(t, closed)
	assert.Equal(t, "service at capacity", reason)
	assert.Empty(t, refused.events())
}
