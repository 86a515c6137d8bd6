package hitl

import (
	"context"
	"log/slog"

	"github.com/dataagent-io/dataagent/pkg/models"
)

// Sender delivers an event to a session's client. Returns false when
// the session has no live connection.
type Sender func(sessionID string, event models.Event) bool

// Notifier is told about approvals that parked waiting for a human.
// Implementations must never fail the approval flow.
type Notifier interface {
	NotifyPendingApproval(ctx context.Context, sessionID string, req models.HITLRequestPayload)
}

// Handler emits hitl_request events and awaits the correlated decision.
// The same handler serves both delivery shapes: in-session decisions
// arrive through the connection read loop, out-of-band ones through the
// HTTP resolve endpoint — both end in Correlator.Resolve.
type Handler struct {
	correlator *Correlator
	send       Sender
	notifier   Notifier
	logger     *slog.Logger
}

// NewHandler creates an approval handler. notifier may be nil.
func NewHandler(correlator *Correlator, send Sender, notifier Notifier) *Handler {
	return &Handler{
		correlator: correlator,
		send:       send,
		notifier:   notifier,
		logger:     slog.Default(),
	}
}

// Correlator exposes the underlying registry (for resolve endpoints).
func (h *Handler) Correlator() *Correlator {
	return h.correlator
}

// RequestApproval sends the hitl_request event and blocks until a
// decision, timeout, or cancellation. The slot is registered before the
// event is sent so a decision can never arrive ahead of it. A dropped
// connection at send time immediately rejects.
func (h *Handler) RequestApproval(ctx context.Context, sessionID string, req models.HITLRequestPayload) *Decision {
	slot := h.correlator.Register(sessionID, req.InterruptID)
	if slot == nil {
		return nil
	}

	if !h.send(sessionID, models.New(req)) {
		h.logger.Warn("Cannot deliver approval request, no live connection",
			"session_id", sessionID, "interrupt_id", req.InterruptID)
		h.correlator.finish(slot.key, nil)
		return Reject("Request cancelled")
	}

	if h.notifier != nil {
		h.notifier.NotifyPendingApproval(ctx, sessionID, req)
	}

	return h.correlator.Wait(ctx, slot)
}
