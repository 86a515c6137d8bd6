package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// DefaultWriteTimeout bounds a single event write to a client.
const DefaultWriteTimeout = 10 * time.Second

// Connection is one session's live client channel.
type Connection struct {
	SessionID string
	transport Transport
}

// Task is a cancellable execution running on behalf of a session.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// ManagerOptions wires a Manager.
type ManagerOptions struct {
	MaxConnections  int
	WriteTimeout    time.Duration
	DecisionTimeout time.Duration

	// Correlator resolves approval slots when a session disconnects.
	Correlator *hitl.Correlator

	Logger *slog.Logger
}

// Manager owns the three session registries: connections, active tasks,
// and pending decisions. One mutex guards map updates and is never held
// across I/O; writes happen on a snapshot taken under the lock.
type Manager struct {
	maxConnections  int
	writeTimeout    time.Duration
	decisionTimeout time.Duration
	correlator      *hitl.Correlator
	logger          *slog.Logger

	mu          sync.Mutex
	connections map[string]*Connection
	tasks       map[string]*Task
	decisions   map[string]chan *hitl.Decision
	autoApprove map[string]bool
}

// NewManager creates a connection manager.
func NewManager(opts ManagerOptions) *Manager {
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	decisionTimeout := opts.DecisionTimeout
	if decisionTimeout <= 0 {
		decisionTimeout = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		maxConnections:  opts.MaxConnections,
		writeTimeout:    writeTimeout,
		decisionTimeout: decisionTimeout,
		correlator:      opts.Correlator,
		logger:          logger,
		connections:     make(map[string]*Connection),
		tasks:           make(map[string]*Task),
		decisions:       make(map[string]chan *hitl.Decision),
		autoApprove:     make(map[string]bool),
	}
}

// Connect registers a transport for the session. At capacity the
// transport is closed with 1013 ("service at capacity") and false is
// returned; existing sessions are unaffected. A second connect for the
// same session replaces the previous transport.
func (m *Manager) Connect(transport Transport, sessionID string) bool {
	m.mu.Lock()
	replaced := m.connections[sessionID]
	if replaced == nil && m.maxConnections > 0 && len(m.connections) >= m.maxConnections {
		m.mu.Unlock()
		m.logger.Warn("Refusing connection, at capacity",
			"session_id", sessionID, "max_connections", m.maxConnections)
		_ = transport.Close(websocket.StatusTryAgainLater, "service at capacity")
		return false
	}
	m.connections[sessionID] = &Connection{SessionID: sessionID, transport: transport}
	m.mu.Unlock()

	if replaced != nil {
		_ = replaced.transport.Close(websocket.StatusNormalClosure, "replaced by new connection")
	}

	m.Send(sessionID, models.New(models.ConnectedPayload{SessionID: sessionID}))
	return true
}

// Disconnect tears a session down: the active task is cancelled, the
// pending decision resolves to nil, every approval slot is rejected, and
// the registries forget the session. Safe for unknown sessions.
func (m *Manager) Disconnect(sessionID string) {
	m.mu.Lock()
	conn := m.connections[sessionID]
	task := m.tasks[sessionID]
	decision := m.decisions[sessionID]
	delete(m.connections, sessionID)
	delete(m.tasks, sessionID)
	delete(m.decisions, sessionID)
	delete(m.autoApprove, sessionID)
	m.mu.Unlock()

	if task != nil {
		task.cancel()
	}
	if decision != nil {
		close(decision)
	}
	if m.correlator != nil {
		m.correlator.CancelPending(sessionID)
		m.correlator.Forget(sessionID)
	}
	if conn != nil {
		_ = conn.transport.Close(websocket.StatusNormalClosure, "disconnected")
		m.logger.Info("Session disconnected", "session_id", sessionID)
	}
}

// Send serializes and writes one event to the session's client. Returns
// false for unknown sessions; a write failure evicts the session.
func (m *Manager) Send(sessionID string, event models.Event) bool {
	m.mu.Lock()
	conn := m.connections[sessionID]
	m.mu.Unlock()
	if conn == nil {
		return false
	}

	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to encode event",
			"session_id", sessionID, "event_type", event.Type, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	if err := conn.transport.Write(ctx, data); err != nil {
		m.logger.Warn("Write failed, evicting session",
			"session_id", sessionID, "error", err)
		m.Disconnect(sessionID)
		return false
	}
	return true
}

// StartTask runs fn as the session's active task. An already-active task
// is cancelled and replaced. The registry entry is removed when fn
// returns.
func (m *Manager) StartTask(sessionID string, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	previous := m.tasks[sessionID]
	m.tasks[sessionID] = task
	m.mu.Unlock()
	if previous != nil {
		previous.cancel()
	}

	go func() {
		defer func() {
			close(task.done)
			cancel()
			m.mu.Lock()
			if m.tasks[sessionID] == task {
				delete(m.tasks, sessionID)
			}
			m.mu.Unlock()
		}()
		fn(ctx)
	}()
	return task
}

// CancelTask cancels the session's active task, reporting whether one
// was running. The task observes cancellation and terminates its own
// stream with done(cancelled=true).
func (m *Manager) CancelTask(sessionID string) bool {
	m.mu.Lock()
	task := m.tasks[sessionID]
	m.mu.Unlock()
	if task == nil {
		return false
	}
	task.cancel()
	return true
}

// HasTask reports whether the session has an active task.
func (m *Manager) HasTask(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[sessionID] != nil
}

// WaitForDecision registers the session's one-shot decision slot and
// blocks until a decision is posted, the timeout elapses, or the slot is
// closed by a disconnect. Returns nil on timeout and disconnect.
func (m *Manager) WaitForDecision(sessionID string) *hitl.Decision {
	ch := make(chan *hitl.Decision, 1)
	m.mu.Lock()
	if previous := m.decisions[sessionID]; previous != nil {
		// A stale slot means the earlier wait already gave up.
		close(previous)
	}
	m.decisions[sessionID] = ch
	m.mu.Unlock()

	timer := time.NewTimer(m.decisionTimeout)
	defer timer.Stop()

	select {
	case decision := <-ch:
		return decision
	case <-timer.C:
		m.mu.Lock()
		if m.decisions[sessionID] == ch {
			delete(m.decisions, sessionID)
		}
		m.mu.Unlock()
		return nil
	}
}

// ResolveDecision completes the session's pending decision slot.
// Returns false when no wait is registered.
func (m *Manager) ResolveDecision(sessionID string, decision *hitl.Decision) bool {
	m.mu.Lock()
	ch := m.decisions[sessionID]
	delete(m.decisions, sessionID)
	m.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- decision
	return true
}

// SetAutoApprove marks the session so later approval requests resolve
// without a client round trip. The mark is cleared on disconnect.
func (m *Manager) SetAutoApprove(sessionID string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.autoApprove[sessionID] = true
	} else {
		delete(m.autoApprove, sessionID)
	}
}

// AutoApproved reports whether the session auto-approves requests.
func (m *Manager) AutoApproved(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoApprove[sessionID]
}

// ActiveConnections returns the number of live sessions.
func (m *Manager) ActiveConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// Connected reports whether the session has a live connection.
func (m *Manager) Connected(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections[sessionID] != nil
}
