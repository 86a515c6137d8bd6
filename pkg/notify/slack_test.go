package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/models"
)

func TestNewSlackNotifier(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		assert.Nil(t, NewSlackNotifier(nil))
	})

	t.Run("disabled", func(t *testing.T) {
		assert.Nil(t, NewSlackNotifier(&config.SlackConfig{Enabled: false, Channel: "C123"}))
	})

	t.Run("missing channel", func(t *testing.T) {
		assert.Nil(t, NewSlackNotifier(&config.SlackConfig{Enabled: true, TokenEnv: "TEST_SLACK_TOKEN"}))
	})

	t.Run("token env unset", func(t *testing.T) {
		t.Setenv("TEST_SLACK_TOKEN", "")
		assert.Nil(t, NewSlackNotifier(&config.SlackConfig{
			Enabled:  true,
			TokenEnv: "TEST_SLACK_TOKEN",
			Channel:  "C123",
		}))
	})

	t.Run("fully configured", func(t *testing.T) {
		t.Setenv("TEST_SLACK_TOKEN", "xoxb-test")
		n := NewSlackNotifier(&config.SlackConfig{
			Enabled:      true,
			TokenEnv:     "TEST_SLACK_TOKEN",
			Channel:      "C123",
			DashboardURL: "https://dash.example.com",
		})
		require.NotNil(t, n)
	})
}

func TestSlackNotifier_NilReceiver(t *testing.T) {
	var n *SlackNotifier

	// Should not panic.
	n.NotifyPendingApproval(context.Background(), "sess-1", models.HITLRequestPayload{
		InterruptID: "int-1",
	})
}

func TestSlackNotifier_NotifyPendingApproval(t *testing.T) {
	var gotChannel string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		gotChannel = r.FormValue("channel")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1234.5678"}`))
	}))
	defer srv.Close()

	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	n := NewSlackNotifierWithClient(client, "https://dash.example.com")

	n.NotifyPendingApproval(context.Background(), "sess-1", models.HITLRequestPayload{
		InterruptID:    "int-1",
		ActionRequests: []models.ActionRequest{{Name: "bash", Args: map[string]any{"command": "ls"}}},
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "C123", gotChannel)
}

func TestSlackNotifier_FailOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	n := NewSlackNotifierWithClient(client, "")

	// Must not panic or block; the error is logged and swallowed.
	n.NotifyPendingApproval(context.Background(), "sess-1", models.HITLRequestPayload{
		InterruptID: "int-1",
	})
}
