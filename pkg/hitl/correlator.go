// Package hitl correlates human-in-the-loop approval requests with the
// decisions that resolve them, across connection and HTTP boundaries.
package hitl

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Decision is the human's answer to one approval request.
type Decision struct {
	Approved bool           `json:"approved"`
	Message  string         `json:"message,omitempty"`
	// Responses carries per-action payloads for human-tool interactions
	// (choice selections, form values). Forwarded verbatim.
	Responses map[string]any `json:"responses,omitempty"`
}

// Reject builds a rejection decision with the given reason.
func Reject(message string) *Decision {
	return &Decision{Approved: false, Message: message}
}

// Approve builds an approval decision.
func Approve() *Decision {
	return &Decision{Approved: true}
}

type slotKey struct {
	sessionID   string
	interruptID string
}

// Correlator is the process-wide registry of pending approval slots.
// Each slot is one-shot: the first resolution wins, later ones are
// rejected. A single lock guards the map; operations are O(1).
type Correlator struct {
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	pending  map[slotKey]chan *Decision
	resolved map[slotKey]struct{}
}

// NewCorrelator creates a correlator with the given approval timeout.
func NewCorrelator(timeout time.Duration) *Correlator {
	return &Correlator{
		timeout:  timeout,
		logger:   slog.Default(),
		pending:  make(map[slotKey]chan *Decision),
		resolved: make(map[slotKey]struct{}),
	}
}

// Slot is a registered pending approval, handed back by Register and
// consumed by Wait.
type Slot struct {
	key slotKey
	ch  chan *Decision
}

// Register creates the one-shot slot for (sessionID, interruptID).
// Registering before the request event is delivered guarantees a fast
// decision always finds its slot. A request for an already-resolved or
// already-pending slot is logged and answered with nil.
func (c *Correlator) Register(sessionID, interruptID string) *Slot {
	key := slotKey{sessionID, interruptID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.resolved[key]; done {
		c.logger.Warn("Ignoring approval request for resolved slot",
			"session_id", sessionID, "interrupt_id", interruptID)
		return nil
	}
	if _, exists := c.pending[key]; exists {
		c.logger.Warn("Ignoring duplicate approval request",
			"session_id", sessionID, "interrupt_id", interruptID)
		return nil
	}
	ch := make(chan *Decision, 1)
	c.pending[key] = ch
	return &Slot{key: key, ch: ch}
}

// Wait blocks until a decision is posted to the slot, the timeout
// elapses (reject "Approval timeout"), or ctx is cancelled (reject
// "Request cancelled").
func (c *Correlator) Wait(ctx context.Context, slot *Slot) *Decision {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case decision := <-slot.ch:
		return decision
	case <-timer.C:
		if decision, ok := c.abandon(slot.key, slot.ch); ok {
			return decision
		}
		c.logger.Info("Approval request timed out",
			"session_id", slot.key.sessionID, "interrupt_id", slot.key.interruptID,
			"timeout", c.timeout)
		return Reject("Approval timeout")
	case <-ctx.Done():
		if decision, ok := c.abandon(slot.key, slot.ch); ok {
			return decision
		}
		return Reject("Request cancelled")
	}
}

// Await registers and waits in one step.
func (c *Correlator) Await(ctx context.Context, sessionID, interruptID string) *Decision {
	slot := c.Register(sessionID, interruptID)
	if slot == nil {
		return nil
	}
	return c.Wait(ctx, slot)
}

// abandon retires a slot after timeout/cancellation. If a decision
// raced in just before the slot was retired, it wins and is returned.
func (c *Correlator) abandon(key slotKey, ch chan *Decision) (*Decision, bool) {
	c.finish(key, nil)
	select {
	case decision := <-ch:
		return decision, true
	default:
		return nil, false
	}
}

// Resolve completes a pending slot. Returns true if the slot existed
// and was not yet resolved.
func (c *Correlator) Resolve(sessionID, interruptID string, decision *Decision) bool {
	key := slotKey{sessionID, interruptID}
	return c.finish(key, decision)
}

// finish marks a slot resolved and delivers the decision when non-nil.
func (c *Correlator) finish(key slotKey, decision *Decision) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, exists := c.pending[key]
	if !exists {
		return false
	}
	delete(c.pending, key)
	c.resolved[key] = struct{}{}
	if decision != nil {
		ch <- decision
	}
	return decision != nil
}

// HasPending reports whether the session has any pending approval.
func (c *Correlator) HasPending(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.pending {
		if key.sessionID == sessionID {
			return true
		}
	}
	return false
}

// PendingCount returns how many approvals are pending for the session.
func (c *Correlator) PendingCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for key := range c.pending {
		if key.sessionID == sessionID {
			count++
		}
	}
	return count
}

// CancelPending rejects every pending approval for the session with
// "Request cancelled" and returns how many were cancelled. Called on
// disconnect and session end.
func (c *Correlator) CancelPending(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, ch := range c.pending {
		if key.sessionID != sessionID {
			continue
		}
		delete(c.pending, key)
		c.resolved[key] = struct{}{}
		ch <- Reject("Request cancelled")
		count++
	}
	if count > 0 {
		c.logger.Info("Cancelled pending approvals",
			"session_id", sessionID, "count", count)
	}
	return count
}

// Forget clears resolved-slot records for a session. Called when the
// session is removed so the set does not grow unbounded.
func (c *Correlator) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.resolved {
		if key.sessionID == sessionID {
			delete(c.resolved, key)
		}
	}
}
