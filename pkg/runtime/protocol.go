package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// Runner starts one execution turn and returns its event stream.
// Satisfied by agent.Executor.
type Runner interface {
	Execute(ctx context.Context, sessionID, userInput string) <-chan models.Event
}

// clientMessage is the envelope of every inbound client message.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type chatPayload struct {
	Content string `json:"content"`
}

// actionDecision is one entry of a hitl_decision payload. Type is
// "approve", "reject", or "auto_approve_all"; the latter approves and
// additionally marks the session so later requests skip the client.
type actionDecision struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type decisionPayload struct {
	Decisions []actionDecision `json:"decisions"`
	Responses map[string]any   `json:"responses,omitempty"`
}

// SessionHandler speaks the client protocol for one connection at a
// time: chat starts an execution task, hitl_decision resolves the
// pending approval, cancel stops the task, ping answers pong.
type SessionHandler struct {
	manager *Manager
	runner  Runner
	logger  *slog.Logger
}

// NewSessionHandler creates the protocol handler.
func NewSessionHandler(manager *Manager, runner Runner) *SessionHandler {
	return &SessionHandler{manager: manager, runner: runner, logger: slog.Default()}
}

// HandleSession owns the connection lifecycle: register (emitting
// connected first), loop over client messages, and tear down on read
// failure or context end. Blocks until the connection closes.
func (h *SessionHandler) HandleSession(ctx context.Context, transport Transport, sessionID string) {
	if !h.manager.Connect(transport, sessionID) {
		return
	}
	defer h.manager.Disconnect(sessionID)

	for {
		data, err := transport.Read(ctx)
		if err != nil {
			return
		}
		h.HandleMessage(ctx, sessionID, data)
	}
}

// HandleMessage dispatches one raw client message.
func (h *SessionHandler) HandleMessage(ctx context.Context, sessionID string, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		h.sendError(sessionID, models.ErrCodeInvalidMessage,
			"message must be an object with 'type' and 'payload'")
		return
	}

	switch msg.Type {
	case "chat":
		h.handleChat(sessionID, msg.Payload)
	case "hitl_decision":
		h.handleDecision(sessionID, msg.Payload)
	case "cancel":
		h.manager.CancelTask(sessionID)
	case "ping":
		h.manager.Send(sessionID, models.New(models.PongPayload{}))
	default:
		h.sendError(sessionID, models.ErrCodeUnknownMessageType,
			"unknown message type: "+msg.Type)
	}
}

func (h *SessionHandler) handleChat(sessionID string, payload json.RawMessage) {
	var chat chatPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &chat); err != nil {
			h.sendError(sessionID, models.ErrCodeInvalidMessage, "invalid chat payload")
			return
		}
	}
	if strings.TrimSpace(chat.Content) == "" {
		h.sendError(sessionID, models.ErrCodeEmptyMessage, "chat message is empty")
		return
	}
	if h.manager.HasTask(sessionID) {
		h.sendError(sessionID, models.ErrCodeInvalidMessage,
			"an execution is already running for this session")
		return
	}
	h.startChat(sessionID, chat.Content)
}

// startChat runs the execution as the session's task, forwarding every
// event through the connection. A forwarded hitl_request arms the
// decision bridge so the next hitl_decision message reaches the
// correlator.
func (h *SessionHandler) startChat(sessionID, content string) {
	h.manager.StartTask(sessionID, func(ctx context.Context) {
		events := h.runner.Execute(ctx, sessionID, content)
		for ev := range events {
			if req, ok := ev.Payload.(models.HITLRequestPayload); ok {
				if h.manager.AutoApproved(sessionID) && h.manager.correlator != nil {
					// The session opted into auto_approve_all earlier;
					// resolve without waiting for a client decision.
					h.manager.correlator.Resolve(sessionID, req.InterruptID,
						&hitl.Decision{Approved: true})
				} else {
					go h.bridgeDecision(sessionID, req.InterruptID)
				}
			}
			if !h.manager.Send(sessionID, ev) {
				// Connection is gone; drain so the executor can finish.
				for range events {
				}
				return
			}
		}
	})
}

// bridgeDecision carries one session-level decision to the interrupt
// correlator. The wire protocol does not repeat the interrupt id; the
// forwarded hitl_request is what binds session to interrupt here. A nil
// decision (timeout, disconnect) is dropped: the correlator times out
// or is cancelled on its own.
func (h *SessionHandler) bridgeDecision(sessionID, interruptID string) {
	decision := h.manager.WaitForDecision(sessionID)
	if decision == nil || h.manager.correlator == nil {
		return
	}
	h.manager.correlator.Resolve(sessionID, interruptID, decision)
}

// handleDecision consolidates per-action decisions into one: approved
// only when every action was approved (or granted auto_approve_all, which
// also arms auto-approval for the rest of the session). Any rejection
// wins over the rest.
func (h *SessionHandler) handleDecision(sessionID string, payload json.RawMessage) {
	var body decisionPayload
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Decisions) == 0 {
		h.sendError(sessionID, models.ErrCodeInvalidMessage, "invalid hitl_decision payload")
		return
	}

	decision := &hitl.Decision{Approved: true, Responses: body.Responses}
	for _, d := range body.Decisions {
		switch d.Type {
		case "approve":
		case "auto_approve_all":
			h.manager.SetAutoApprove(sessionID, true)
		default:
			decision.Approved = false
			decision.Message = d.Message
			if decision.Message == "" {
				decision.Message = "Rejected by user"
			}
		}
		if !decision.Approved {
			break
		}
	}

	if !h.manager.ResolveDecision(sessionID, decision) {
		h.logger.Warn("Decision received with no pending request",
			"session_id", sessionID)
	}
}

func (h *SessionHandler) sendError(sessionID, code, message string) {
	h.manager.Send(sessionID, models.New(models.ErrorPayload{
		Error:       message,
		Code:        code,
		Recoverable: true,
	}))
}
