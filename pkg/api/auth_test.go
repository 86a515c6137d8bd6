package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, method, target string, headers map[string]string) *echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequesterID(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "no headers falls back to api-client",
			headers: nil,
			want:    "api-client",
		},
		{
			name:    "X-Forwarded-User wins",
			headers: map[string]string{"X-Forwarded-User": "alice", "X-Forwarded-Email": "alice@example.com"},
			want:    "alice",
		},
		{
			name:    "X-Forwarded-Email as fallback",
			headers: map[string]string{"X-Forwarded-Email": "alice@example.com", "X-Remote-User": "alice"},
			want:    "alice@example.com",
		},
		{
			name:    "X-Remote-User last",
			headers: map[string]string{"X-Remote-User": "alice"},
			want:    "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext(t, http.MethodGet, "/", tt.headers)
			assert.Equal(t, tt.want, requesterID(c))
		})
	}
}

func TestRequireUserAccess(t *testing.T) {
	s := &Server{}

	t.Run("owner is allowed", func(t *testing.T) {
		c := newTestContext(t, http.MethodGet, "/", map[string]string{"X-Forwarded-User": "alice"})
		assert.NoError(t, s.requireUserAccess(c, "alice"))
	})

	t.Run("other user is denied without admin role", func(t *testing.T) {
		c := newTestContext(t, http.MethodGet, "/", map[string]string{"X-Forwarded-User": "alice"})
		err := s.requireUserAccess(c, "bob")
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "expected echo.HTTPError")
		assert.Equal(t, http.StatusForbidden, he.Code)
	})
}
