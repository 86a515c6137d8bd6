package hitl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) NotifyPendingApproval(_ context.Context, sessionID string, _ models.HITLRequestPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sessionID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func TestHandlerRequestApproval(t *testing.T) {
	correlator := NewCorrelator(5 * time.Second)
	var sentMu sync.Mutex
	var sent []models.Event
	send := func(_ string, ev models.Event) bool {
		sentMu.Lock()
		defer sentMu.Unlock()
		sent = append(sent, ev)
		return true
	}
	notifier := &recordingNotifier{}
	handler := NewHandler(correlator, send, notifier)

	req := models.HITLRequestPayload{
		InterruptID: "int-1",
		ActionRequests: []models.ActionRequest{
			{Name: "github__delete_repo", Args: map[string]any{"repo": "x"}},
		},
	}

	var decision *Decision
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		decision = handler.RequestApproval(context.Background(), "s1", req)
	}()

	require.Eventually(t, func() bool { return correlator.HasPending("s1") },
		time.Second, 5*time.Millisecond)

	sentMu.Lock()
	require.Len(t, sent, 1)
	assert.Equal(t, models.EventTypeHITLRequest, sent[0].Type)
	payload, ok := sent[0].Payload.(models.HITLRequestPayload)
	require.True(t, ok)
	assert.Equal(t, "int-1", payload.InterruptID)
	sentMu.Unlock()

	assert.Equal(t, 1, notifier.count())

	correlator.Resolve("s1", "int-1", Approve())
	wg.Wait()
	require.NotNil(t, decision)
	assert.True(t, decision.Approved)
}

func TestHandlerNoConnection(t *testing.T) {
	correlator := NewCorrelator(5 * time.Second)
	send := func(string, models.Event) bool { return false }
	handler := NewHandler(correlator, send, nil)

	decision := handler.RequestApproval(context.Background(), "s1",
		models.HITLRequestPayload{InterruptID: "int-1"})
	require.NotNil(t, decision)
	assert.False(t, decision.Approved)
	assert.Equal(t, "Request cancelled", decision.Message)
	assert.False(t, correlator.HasPending("s1"))
}
