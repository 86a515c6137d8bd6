package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/dataagent-io/dataagent/pkg/hitl"
)

// ResolveHITLRequest is the body of POST /hitl/resolve.
type ResolveHITLRequest struct {
	SessionID   string `json:"session_id"`
	InterruptID string `json:"interrupt_id"`
	Decision    struct {
		Approved  bool           `json:"approved"`
		Message   string         `json:"message,omitempty"`
		Responses map[string]any `json:"responses,omitempty"`
	} `json:"decision"`
}

// ResolveHITLResponse acknowledges a resolved approval.
type ResolveHITLResponse struct {
	SessionID   string `json:"session_id"`
	InterruptID string `json:"interrupt_id"`
	Resolved    bool   `json:"resolved"`
}

// resolveHITLHandler handles POST /api/v1/hitl/resolve: the out-of-band
// path for approval decisions when the client is not on the session's
// live channel. The slot is one-shot; a second resolve returns 404.
func (s *Server) resolveHITLHandler(c *echo.Context) error {
	if s.correlator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "approvals are not available")
	}

	var req ResolveHITLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	if req.InterruptID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "interrupt_id is required")
	}

	decision := &hitl.Decision{
		Approved:  req.Decision.Approved,
		Message:   req.Decision.Message,
		Responses: req.Decision.Responses,
	}
	if !s.correlator.Resolve(req.SessionID, req.InterruptID, decision) {
		return echo.NewHTTPError(http.StatusNotFound, "no pending approval for this interrupt")
	}

	return c.JSON(http.StatusOK, &ResolveHITLResponse{
		SessionID:   req.SessionID,
		InterruptID: req.InterruptID,
		Resolved:    true,
	})
}
