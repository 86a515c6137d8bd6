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

	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/services"
	testdb "github.com/dataagent-io/dataagent/test/database"
)

// scriptedRunner replays a fixed event sequence for any execution.
type scriptedRunner struct {
	events []models.Event
}

func (r scriptedRunner) Execute(_ context.Context, _, _ string) <-chan models.Event {
	ch := make(chan models.Event, len(r.events))
	for _, ev := range r.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestChatHandler_Validation(t *testing.T) {
	s := &Server{
		runner:         scriptedRunner{},
		sessionService: services.NewSessionService(nil),
	}

	tests := []struct {
		name    string
		body    string
		wantErr int
		errMsg  string
	}{
		{
			name:    "empty message",
			body:    `{"message":""}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "message is required",
		},
		{
			name:    "message too long",
			body:    `{"message":"` + strings.Repeat("x", maxChatMessageLength+1) + `"}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "maximum length",
		},
		{
			name:    "hitl_response without interrupt_id",
			body:    `{"session_id":"sess-1","hitl_response":{"approved":true}}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "interrupt_id",
		},
		{
			name:    "hitl_response without session_id",
			body:    `{"hitl_response":{"interrupt_id":"int-1","approved":true}}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "session_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := s.chatHandler(c)
			require.Error(t, err)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok, "expected echo.HTTPError")
			assert.Equal(t, tt.wantErr, he.Code)
			assert.Contains(t, he.Message, tt.errMsg)
		})
	}

	t.Run("no runner returns 503", func(t *testing.T) {
		bare := &Server{}
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := bare.chatHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusServiceUnavailable, he.Code)
	})
}

func newChatTestServer(t *testing.T, runner scriptedRunner) *Server {
	t.Helper()
	client := testdb.NewTestClient(t)
	return NewServer(ServerOptions{
		UserService:    services.NewUserService(client.Client),
		SessionService: services.NewSessionService(client.Client),
		MessageService: services.NewMessageService(client.Client),
		Runner:         runner,
	})
}

func chatTurnEvents() []models.Event {
	return []models.Event{
		models.New(models.TextPayload{Content: "Hello", IsFinal: false}),
		models.New(models.TextPayload{Content: "", IsFinal: true}),
		models.New(models.DonePayload{}),
	}
}

func TestChatHandler_FullTurn(t *testing.T) {
	s := newChatTestServer(t, scriptedRunner{events: chatTurnEvents()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Forwarded-User", "alice")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Events, 3)
	assert.Equal(t, models.EventTypeText, resp.Events[0].Type)
	assert.Equal(t, models.EventTypeDone, resp.Events[2].Type)

	// Transcript persisted: user message then assistant message.
	ctx := context.Background()
	msgs, err := s.messageService.GetSessionMessages(ctx, resp.SessionID, models.MessageFilters{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "Hello", msgs[1].Content)

	// Session belongs to the requester.
	sess, err := s.sessionService.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.UserID)
}

func TestChatHandler_ReusesSession(t *testing.T) {
	s := newChatTestServer(t, scriptedRunner{events: chatTurnEvents()})

	send := func(body string) ChatResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-Forwarded-User", "alice")
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := send(`{"message":"hi"}`)
	second := send(`{"message":"again","session_id":"` + first.SessionID + `"}`)
	assert.Equal(t, first.SessionID, second.SessionID)

	msgs, err := s.messageService.GetSessionMessages(context.Background(), first.SessionID, models.MessageFilters{})
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestChatStreamHandler_FramedEvents(t *testing.T) {
	s := newChatTestServer(t, scriptedRunner{events: chatTurnEvents()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Forwarded-User", "alice")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 3)
	for _, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "), frame)
		var ev models.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
	}
}
