package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Manager owns the base directory under which every user workspace lives:
// <base>/<sanitized_user_id>/. Workspaces are created idempotently on first
// access and deleted only by explicit request or the age sweeper.
type Manager struct {
	base         string
	quota        Quota
	enforceQuota bool

	mu         sync.Mutex
	workspaces map[string]*Workspace // sanitized user id → handle
}

// NewManager creates a workspace manager rooted at base.
// enforceQuota=false disables all quota checks (test and single-user modes).
func NewManager(base string, quota Quota, enforceQuota bool) *Manager {
	return &Manager{
		base:         base,
		quota:        quota,
		enforceQuota: enforceQuota,
		workspaces:   make(map[string]*Workspace),
	}
}

// SanitizeUserID maps an arbitrary user id to a safe directory name:
// path separators, "..", and anything outside [A-Za-z0-9_-] become "_".
// An empty id maps to "anonymous".
func SanitizeUserID(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	s := strings.ReplaceAll(userID, "..", "_")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "anonymous"
	}
	return out
}

// Get returns the workspace for a user, creating its root on first access.
func (m *Manager) Get(userID string) (*Workspace, error) {
	id := SanitizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.workspaces[id]; ok {
		return w, nil
	}

	root := filepath.Join(m.base, id)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace for %s: %w", id, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	w := &Workspace{
		userID:       id,
		root:         abs,
		quota:        m.quota,
		enforceQuota: m.enforceQuota,
	}
	m.workspaces[id] = w
	return w, nil
}

// Delete removes a user's workspace recursively.
func (m *Manager) Delete(userID string) error {
	id := SanitizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.workspaces, id)
	root := filepath.Join(m.base, id)
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to delete workspace for %s: %w", id, err)
	}
	return nil
}

// SweepOlderThan removes workspaces whose root mtime is older than maxAge.
// Returns the number of workspaces removed. Called by the cleanup service.
func (m *Manager) SweepOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.base)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list workspace base: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := m.Delete(e.Name()); err != nil {
			slog.Warn("Failed to sweep stale workspace", "user_id", e.Name(), "error", err)
			continue
		}
		slog.Info("Swept stale workspace", "user_id", e.Name(), "mtime", info.ModTime())
		removed++
	}
	return removed, nil
}
