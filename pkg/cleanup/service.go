// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/services"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

// Service periodically enforces retention policies:
//   - Expires sessions idle past the configured window
//   - Hard-deletes soft-deleted sessions past the retention period
//   - Sweeps workspace directories untouched for the retention period
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config         *config.RetentionConfig
	sessionService *services.SessionService
	workspaces     *workspace.Manager

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. workspaces may be nil when
// workspace sweeping is not wanted.
func NewService(
	cfg *config.RetentionConfig,
	sessionService *services.SessionService,
	workspaces *workspace.Manager,
) *Service {
	return &Service{
		config:         cfg,
		sessionService: sessionService,
		workspaces:     workspaces,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"session_max_idle", s.config.SessionMaxIdle,
		"session_retention_days", s.config.SessionRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.expireIdleSessions(ctx)
	s.purgeDeletedSessions(ctx)
	s.sweepWorkspaces(ctx)
}

func (s *Service) expireIdleSessions(_ context.Context) {
	count, err := s.sessionService.ExpireIdleSessions(context.Background(), s.config.SessionMaxIdle)
	if err != nil {
		slog.Error("Retention: session expiry failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: expired idle sessions", "count", count)
	}
}

func (s *Service) purgeDeletedSessions(_ context.Context) {
	retention := time.Duration(s.config.SessionRetentionDays) * 24 * time.Hour
	count, err := s.sessionService.PurgeDeletedSessions(context.Background(), retention)
	if err != nil {
		slog.Error("Retention: session purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged deleted sessions", "count", count)
	}
}

func (s *Service) sweepWorkspaces(ctx context.Context) {
	if s.workspaces == nil {
		return
	}
	retention := time.Duration(s.config.SessionRetentionDays) * 24 * time.Hour
	count, err := s.workspaces.SweepOlderThan(ctx, retention)
	if err != nil {
		slog.Error("Retention: workspace sweep failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: swept stale workspaces", "count", count)
	}
}
