package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/google/uuid"

	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/runtime"
)

// wsHandler upgrades GET /ws to a WebSocket and hands the connection to
// the session runtime. The session id comes from the session_id query
// parameter; a missing id starts a fresh session.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.sessionHandler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "WebSocket not available")
	}

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if s.sessionService != nil {
		userID := requesterID(c)
		if s.userService != nil {
			if _, err := s.userService.EnsureUser(c.Request().Context(), userID); err != nil {
				return mapServiceError(err)
			}
		}
		sess, err := s.sessionService.GetOrCreateSession(c.Request().Context(), models.CreateSessionRequest{
			SessionID: sessionID,
			UserID:    userID,
		})
		if err != nil {
			return mapServiceError(err)
		}
		if err := s.requireUserAccess(c, sess.UserID); err != nil {
			return err
		}
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedWSOrigins,
	})
	if err != nil {
		return err
	}

	// HandleSession blocks until the WebSocket closes.
	s.sessionHandler.HandleSession(c.Request().Context(), &runtime.WebSocketTransport{Conn: conn}, sessionID)
	return nil
}
