package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// anonymousUser is the identity assigned when no proxy header is present.
const anonymousUser = "api-client"

// requesterID extracts the requesting user's identity from proxy headers.
// Priority: X-Forwarded-User (oauth2-proxy) > X-Forwarded-Email (oauth2-proxy) >
// X-Remote-User (kube-rbac-proxy) > "api-client"
func requesterID(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.Request().Header.Get("X-Forwarded-Email"); email != "" {
		return email
	}
	if user := c.Request().Header.Get("X-Remote-User"); user != "" {
		return user
	}
	return anonymousUser
}

// requireUserAccess authorizes the requester against a user-scoped
// resource: the requester must be the resource owner or hold the admin
// role. Denials are written to the audit log before returning 403.
func (s *Server) requireUserAccess(c *echo.Context, targetUserID string) error {
	requester := requesterID(c)
	if requester == targetUserID {
		return nil
	}

	if s.userService != nil {
		admin, err := s.userService.IsAdmin(c.Request().Context(), requester)
		if err != nil {
			return mapServiceError(err)
		}
		if admin {
			return nil
		}
	}

	slog.Warn("Authorization denied",
		"audit", true,
		"requester", requester,
		"target_user", targetUserID,
		"method", c.Request().Method,
		"path", c.Request().URL.Path)
	return echo.NewHTTPError(http.StatusForbidden, "access to another user's resources requires admin role")
}
