package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// SessionResponse is the wire form of one session.
type SessionResponse struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	AssistantID  string         `json:"assistant_id"`
	Title        string         `json:"title,omitempty"`
	Status       string         `json:"status"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// MessageResponse is the wire form of one conversation message.
type MessageResponse struct {
	MessageID      string           `json:"message_id"`
	SequenceNumber int              `json:"sequence_number"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []map[string]any `json:"tool_calls,omitempty"`
	ToolCallID     string           `json:"tool_call_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// MessageListResponse is the body of GET /sessions/:id/messages.
type MessageListResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []MessageResponse `json:"messages"`
	Total     int               `json:"total"`
}

func sessionToResponse(sess *ent.Session) SessionResponse {
	title := ""
	if sess.Title != nil {
		title = *sess.Title
	}
	return SessionResponse{
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		AssistantID:  sess.AgentID,
		Title:        title,
		Status:       string(sess.Status),
		Metadata:     sess.SessionMetadata,
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
	}
}

// listSessionsHandler handles GET /api/v1/sessions. Sessions are always
// user-scoped: the requester sees their own unless an admin names
// another user via the user_id query parameter.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	targetUser := c.QueryParam("user_id")
	if targetUser == "" {
		targetUser = requesterID(c)
	}
	if err := s.requireUserAccess(c, targetUser); err != nil {
		return err
	}

	filters := models.SessionFilters{
		UserID:      targetUser,
		AssistantID: c.QueryParam("assistant_id"),
	}
	if v := c.QueryParam("include_archived"); v != "" {
		filters.IncludeArchived = v == "true" || v == "1"
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		filters.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		filters.Offset = n
	}

	sessions, total, err := s.sessionService.ListSessions(c.Request().Context(), filters)
	if err != nil {
		return mapServiceError(err)
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionToResponse(sess))
	}
	return c.JSON(http.StatusOK, &SessionListResponse{Sessions: out, Total: total})
}

// resolveSession loads a session and authorizes the requester against
// its owner.
func (s *Server) resolveSession(c *echo.Context) (*ent.Session, error) {
	sessionID := c.Param("id")
	if sessionID == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	sess, err := s.sessionService.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if err := s.requireUserAccess(c, sess.UserID); err != nil {
		return nil, err
	}
	return sess, nil
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sess, err := s.resolveSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionToResponse(sess))
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:id (soft delete).
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sess, err := s.resolveSession(c)
	if err != nil {
		return err
	}
	if err := s.sessionService.DeleteSession(c.Request().Context(), sess.ID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// endSessionHandler handles POST /api/v1/sessions/:id/end.
func (s *Server) endSessionHandler(c *echo.Context) error {
	sess, err := s.resolveSession(c)
	if err != nil {
		return err
	}
	ended, err := s.sessionService.EndSession(c.Request().Context(), sess.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionToResponse(ended))
}

// UpdateTitleRequest is the body of PUT /sessions/:id/title.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// updateSessionTitleHandler handles PUT /api/v1/sessions/:id/title.
func (s *Server) updateSessionTitleHandler(c *echo.Context) error {
	sess, err := s.resolveSession(c)
	if err != nil {
		return err
	}
	var req UpdateTitleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	updated, err := s.sessionService.UpdateTitle(c.Request().Context(), sess.ID, req.Title)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionToResponse(updated))
}

// listMessagesHandler handles GET /api/v1/sessions/:id/messages with
// limit/offset pagination.
func (s *Server) listMessagesHandler(c *echo.Context) error {
	sess, err := s.resolveSession(c)
	if err != nil {
		return err
	}

	filters := models.MessageFilters{}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		filters.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		filters.Offset = n
	}

	msgs, err := s.messageService.GetSessionMessages(c.Request().Context(), sess.ID, filters)
	if err != nil {
		return mapServiceError(err)
	}
	total, err := s.messageService.CountMessages(c.Request().Context(), sess.ID)
	if err != nil {
		return mapServiceError(err)
	}

	out := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		resp := MessageResponse{
			MessageID:      msg.ID,
			SequenceNumber: msg.SequenceNumber,
			Role:           string(msg.Role),
			Content:        msg.Content,
			ToolCalls:      msg.ToolCalls,
			CreatedAt:      msg.CreatedAt,
		}
		if msg.ToolCallID != nil {
			resp.ToolCallID = *msg.ToolCallID
		}
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, &MessageListResponse{SessionID: sess.ID, Messages: out, Total: total})
}
