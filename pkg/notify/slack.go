package notify

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/models"
)

// SlackNotifier posts a channel message whenever an approval parks
// waiting for a human. Implements the approval flow's Notifier contract.
// Nil-safe: all methods are no-ops when the notifier is nil.
type SlackNotifier struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewSlackNotifier builds a notifier from configuration. Returns nil
// when notifications are disabled or incompletely configured; callers
// pass the nil straight through.
func NewSlackNotifier(cfg *config.SlackConfig) *SlackNotifier {
	if cfg == nil || !cfg.Enabled || cfg.Channel == "" {
		return nil
	}
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		slog.Warn("Slack notifications disabled, token env not set", "token_env", cfg.TokenEnv)
		return nil
	}
	return NewSlackNotifierWithClient(NewClient(token, cfg.Channel), cfg.DashboardURL)
}

// NewSlackNotifierWithClient creates a notifier backed by a pre-built
// client. Useful for testing with a mock API server.
func NewSlackNotifierWithClient(client *Client, dashboardURL string) *SlackNotifier {
	return &SlackNotifier{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-notifier"),
	}
}

// NotifyPendingApproval posts the pending-approval message.
// Fail-open: errors are logged, never returned.
func (n *SlackNotifier) NotifyPendingApproval(ctx context.Context, sessionID string, req models.HITLRequestPayload) {
	if n == nil {
		return
	}

	blocks := BuildApprovalMessage(sessionID, req, n.dashboardURL)
	if err := n.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		n.logger.Error("Failed to send approval notification",
			"session_id", sessionID,
			"interrupt_id", req.InterruptID,
			"error", err)
	}
}
