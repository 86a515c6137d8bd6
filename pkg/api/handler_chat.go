package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// maxChatMessageLength bounds a single chat message body.
const maxChatMessageLength = 100_000

// ChatHITLResponse is an out-of-band approval decision piggybacked on a
// chat request.
type ChatHITLResponse struct {
	InterruptID string         `json:"interrupt_id"`
	Approved    bool           `json:"approved"`
	Message     string         `json:"message,omitempty"`
	Responses   map[string]any `json:"responses,omitempty"`
}

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	Message      string            `json:"message"`
	SessionID    string            `json:"session_id,omitempty"`
	AssistantID  string            `json:"assistant_id,omitempty"`
	UserContext  map[string]any    `json:"user_context,omitempty"`
	HITLResponse *ChatHITLResponse `json:"hitl_response,omitempty"`
}

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	SessionID string         `json:"session_id"`
	Events    []models.Event `json:"events"`
}

// chatHandler handles POST /api/v1/chat. The whole turn executes within
// the request: the response carries every event of the stream.
func (s *Server) chatHandler(c *echo.Context) error {
	req, sess, err := s.beginChat(c)
	if err != nil {
		return err
	}
	if sess == nil {
		// hitl_response with no follow-up message: nothing to execute.
		return c.JSON(http.StatusOK, &ChatResponse{SessionID: req.SessionID, Events: []models.Event{}})
	}

	recorder := NewTranscriptRecorder()
	var collected []models.Event
	for ev := range s.runner.Execute(c.Request().Context(), sess.ID, req.Message) {
		recorder.Observe(ev)
		collected = append(collected, ev)
	}
	s.finishChat(c.Request().Context(), sess.ID, recorder)

	return c.JSON(http.StatusOK, &ChatResponse{SessionID: sess.ID, Events: collected})
}

// chatStreamHandler handles POST /api/v1/chat/stream, sending each event
// as a server-sent-events frame as soon as it is produced.
func (s *Server) chatStreamHandler(c *echo.Context) error {
	req, sess, err := s.beginChat(c)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	if sess == nil {
		return rc.Flush()
	}

	recorder := NewTranscriptRecorder()
	for ev := range s.runner.Execute(c.Request().Context(), sess.ID, req.Message) {
		recorder.Observe(ev)
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("Failed to encode event", "session_id", sess.ID, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// Client went away; drain so the executor can finish.
			break
		}
		_ = rc.Flush()
	}
	s.finishChat(c.Request().Context(), sess.ID, recorder)
	return nil
}

// beginChat validates the request, resolves any piggybacked HITL
// decision, and binds the session with the user message persisted. A nil
// session with a nil error means there is nothing to execute.
func (s *Server) beginChat(c *echo.Context) (*ChatRequest, *ent.Session, error) {
	if s.runner == nil || s.sessionService == nil {
		return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "chat is not available")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.HITLResponse != nil {
		if req.SessionID == "" || req.HITLResponse.InterruptID == "" {
			return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "hitl_response requires session_id and interrupt_id")
		}
		if s.correlator == nil {
			return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "approvals are not available")
		}
		decision := &hitl.Decision{
			Approved:  req.HITLResponse.Approved,
			Message:   req.HITLResponse.Message,
			Responses: req.HITLResponse.Responses,
		}
		if !s.correlator.Resolve(req.SessionID, req.HITLResponse.InterruptID, decision) {
			return nil, nil, echo.NewHTTPError(http.StatusNotFound, "no pending approval for this interrupt")
		}
		if req.Message == "" {
			return &req, nil, nil
		}
	}

	if req.Message == "" {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if len(req.Message) > maxChatMessageLength {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "message exceeds maximum length of 100,000 characters")
	}

	userID := requesterID(c)
	if s.userService != nil {
		if _, err := s.userService.EnsureUser(c.Request().Context(), userID); err != nil {
			return nil, nil, mapServiceError(err)
		}
	}

	sess, err := s.sessionService.GetOrCreateSession(c.Request().Context(), models.CreateSessionRequest{
		SessionID:   req.SessionID,
		UserID:      userID,
		AssistantID: req.AssistantID,
		Metadata:    req.UserContext,
	})
	if err != nil {
		return nil, nil, mapServiceError(err)
	}

	if s.messageService != nil {
		if _, err := s.messageService.AppendMessage(c.Request().Context(), models.CreateMessageRequest{
			SessionID: sess.ID,
			Role:      models.RoleUser,
			Content:   req.Message,
		}); err != nil {
			return nil, nil, mapServiceError(err)
		}
	}

	return &req, sess, nil
}

// finishChat persists the assistant/tool transcript of a finished turn
// and bumps the session's activity timestamp. Persistence failures are
// logged, never surfaced: the client already has the events.
func (s *Server) finishChat(ctx context.Context, sessionID string, recorder *TranscriptRecorder) {
	if s.messageService != nil {
		for _, msg := range recorder.Messages() {
			msg.SessionID = sessionID
			if _, err := s.messageService.AppendMessage(ctx, msg); err != nil {
				slog.Error("Failed to persist chat transcript",
					"session_id", sessionID, "role", msg.Role, "error", err)
				break
			}
		}
	}
	if err := s.sessionService.TouchSession(ctx, sessionID); err != nil {
		slog.Warn("Failed to touch session", "session_id", sessionID, "error", err)
	}
}
