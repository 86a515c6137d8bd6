package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/ent/user"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/services"
	testdb "github.com/dataagent-io/dataagent/test/database"
)

func TestListSessionsHandler_Validation(t *testing.T) {
	// Parameter validation only; the service is never reached.
	s := &Server{}

	tests := []struct {
		name   string
		query  string
		errMsg string
	}{
		{name: "invalid limit", query: "limit=abc", errMsg: "invalid limit"},
		{name: "negative limit", query: "limit=-1", errMsg: "invalid limit"},
		{name: "invalid offset", query: "offset=x", errMsg: "invalid offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := s.listSessionsHandler(c)
			require.Error(t, err)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok, "expected echo.HTTPError")
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Contains(t, he.Message, tt.errMsg)
		})
	}
}

func newSessionTestServer(t *testing.T) *Server {
	t.Helper()
	client := testdb.NewTestClient(t)
	return NewServer(ServerOptions{
		UserService:    services.NewUserService(client.Client),
		SessionService: services.NewSessionService(client.Client),
		MessageService: services.NewMessageService(client.Client),
	})
}

func seedSession(t *testing.T, s *Server, userID string) string {
	t.Helper()
	ctx := context.Background()
	_, err := s.userService.EnsureUser(ctx, userID)
	require.NoError(t, err)
	sess, err := s.sessionService.CreateSession(ctx, models.CreateSessionRequest{
		UserID:      userID,
		AssistantID: "default",
	})
	require.NoError(t, err)
	return sess.ID
}

func doRequest(s *Server, method, target, body, asUser string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if asUser != "" {
		req.Header.Set("X-Forwarded-User", asUser)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestSessionHandlers_CRUD(t *testing.T) {
	s := newSessionTestServer(t)
	sessionID := seedSession(t, s, "alice")

	t.Run("owner reads own session", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/sessions/"+sessionID, "", "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, sessionID, resp.SessionID)
		assert.Equal(t, "alice", resp.UserID)
		assert.Equal(t, "active", resp.Status)
	})

	t.Run("other user is denied", func(t *testing.T) {
		_, err := s.userService.EnsureUser(context.Background(), "mallory")
		require.NoError(t, err)
		rec := doRequest(s, http.MethodGet, "/api/v1/sessions/"+sessionID, "", "mallory")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin may read it", func(t *testing.T) {
		_, err := s.userService.EnsureUser(context.Background(), "root")
		require.NoError(t, err)
		_, err = s.userService.SetRole(context.Background(), "root", user.RoleAdmin)
		require.NoError(t, err)

		rec := doRequest(s, http.MethodGet, "/api/v1/sessions/"+sessionID, "", "root")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list is scoped to the requester", func(t *testing.T) {
		seedSession(t, s, "bob")

		rec := doRequest(s, http.MethodGet, "/api/v1/sessions", "", "alice")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SessionListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "alice", resp.Sessions[0].UserID)
	})

	t.Run("title update", func(t *testing.T) {
		rec := doRequest(s, http.MethodPut, "/api/v1/sessions/"+sessionID+"/title",
			`{"title":"onboarding help"}`, "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "onboarding help", resp.Title)
	})

	t.Run("end then delete", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/v1/sessions/"+sessionID+"/end", "", "alice")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(s, http.MethodDelete, "/api/v1/sessions/"+sessionID, "", "alice")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doRequest(s, http.MethodGet, "/api/v1/sessions/"+sessionID, "", "alice")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListMessagesHandler_Pagination(t *testing.T) {
	s := newSessionTestServer(t)
	sessionID := seedSession(t, s, "alice")

	ctx := context.Background()
	for _, content := range []string{"one", "two", "three"} {
		_, err := s.messageService.AppendMessage(ctx, models.CreateMessageRequest{
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   content,
		})
		require.NoError(t, err)
	}

	rec := doRequest(s, http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages?limit=2&offset=1", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MessageListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "two", resp.Messages[0].Content)
	assert.Equal(t, "three", resp.Messages[1].Content)
	assert.Equal(t, 2, resp.Messages[0].SequenceNumber)
}
