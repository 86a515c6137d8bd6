package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/hitl"
)

func postJSON(t *testing.T, s *Server, target, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, s.resolveHITLHandler(c)
}

func TestResolveHITLHandler(t *testing.T) {
	correlator := hitl.NewCorrelator(5 * time.Second)
	s := &Server{correlator: correlator}

	t.Run("resolves a pending approval", func(t *testing.T) {
		slot := correlator.Register("sess-1", "int-1")
		require.NotNil(t, slot)

		got := make(chan *hitl.Decision, 1)
		go func() {
			got <- correlator.Wait(context.Background(), slot)
		}()

		rec, err := postJSON(t, s, "/api/v1/hitl/resolve",
			`{"session_id":"sess-1","interrupt_id":"int-1","decision":{"approved":true}}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ResolveHITLResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Resolved)

		decision := <-got
		require.NotNil(t, decision)
		assert.True(t, decision.Approved)
	})

	t.Run("rejection carries message and responses", func(t *testing.T) {
		slot := correlator.Register("sess-2", "int-2")
		require.NotNil(t, slot)

		got := make(chan *hitl.Decision, 1)
		go func() {
			got <- correlator.Wait(context.Background(), slot)
		}()

		_, err := postJSON(t, s, "/api/v1/hitl/resolve",
			`{"session_id":"sess-2","interrupt_id":"int-2","decision":{"approved":false,"message":"too risky","responses":{"act":"skip"}}}`)
		require.NoError(t, err)

		decision := <-got
		require.NotNil(t, decision)
		assert.False(t, decision.Approved)
		assert.Equal(t, "too risky", decision.Message)
		assert.Equal(t, "skip", decision.Responses["act"])
	})

	t.Run("unknown interrupt returns 404", func(t *testing.T) {
		_, err := postJSON(t, s, "/api/v1/hitl/resolve",
			`{"session_id":"sess-9","interrupt_id":"int-9","decision":{"approved":true}}`)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("second resolve of the same slot returns 404", func(t *testing.T) {
		slot := correlator.Register("sess-3", "int-3")
		require.NotNil(t, slot)
		go correlator.Wait(context.Background(), slot)

		_, err := postJSON(t, s, "/api/v1/hitl/resolve",
			`{"session_id":"sess-3","interrupt_id":"int-3","decision":{"approved":true}}`)
		require.NoError(t, err)

		_, err = postJSON(t, s, "/api/v1/hitl/resolve",
			`{"session_id":"sess-3","interrupt_id":"int-3","decision":{"approved":false}}`)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		for _, body := range []string{
			`{"interrupt_id":"int-1","decision":{"approved":true}}`,
			`{"session_id":"sess-1","decision":{"approved":true}}`,
		} {
			_, err := postJSON(t, s, "/api/v1/hitl/resolve", body)
			require.Error(t, err)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, he.Code)
		}
	})

	t.Run("no correlator returns 503", func(t *testing.T) {
		bare := &Server{}
		_, err := postJSON(t, bare, "/api/v1/hitl/resolve",
			`{"session_id":"s","interrupt_id":"i","decision":{"approved":true}}`)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusServiceUnavailable, he.Code)
	})
}
