package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, quota Quota, enforce bool) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), quota, enforce)
}

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"alice-w_1", "alice-w_1"},
		{"a/b", "a_b"},
		{`a\b`, "a_b"},
		{"..", "_"},
		{"../../etc", "______etc"},
		{"user@example.com", "user_example_com"},
		{"", "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeUserID(tt.in))
		})
	}
}

func TestWorkspaceReadWrite(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)
	w, err := m.Get("alice")
	require.NoError(t, err)

	require.NoError(t, w.WriteFileString("notes/today.txt", "hello\n"))

	data, err := w.ReadFile("notes/today.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	assert.True(t, w.Exists("notes/today.txt"))
	assert.True(t, w.IsFile("notes/today.txt"))
	assert.True(t, w.IsDir("notes"))
	assert.False(t, w.IsFile("notes"))

	names, err := w.ListDir("notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"today.txt"}, names)

	rel, err := w.RelPath(filepath.Join(w.Root(), "notes", "today.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("notes", "today.txt"), rel)

	require.NoError(t, w.DeleteFile("notes/today.txt"))
	assert.False(t, w.Exists("notes/today.txt"))
}

// TestPathEscape covers the sandbox property: escaping paths fail with
// *PathEscapeError on read/write/delete and return false from the
// predicates.
func TestPathEscape(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)
	w, err := m.Get("alice")
	require.NoError(t, err)

	escapes := []string{
		"../other",
		"../../etc/passwd",
		"a/../../b",
		"/etc/passwd",
	}
	for _, p := range escapes {
		t.Run(p, func(t *testing.T) {
			var escErr *PathEscapeError

			_, err := w.ReadFile(p)
			require.Error(t, err)
			assert.True(t, errors.As(err, &escErr), "read: %v", err)

			err = w.WriteFileString(p, "x")
			require.Error(t, err)
			assert.True(t, errors.As(err, &escErr), "write: %v", err)

			err = w.DeleteFile(p)
			require.Error(t, err)
			assert.True(t, errors.As(err, &escErr), "delete: %v", err)

			assert.False(t, w.Exists(p))
			assert.False(t, w.IsFile(p))
			assert.False(t, w.IsDir(p))
		})
	}
}

func TestPathEscapeThroughSymlink(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)
	w, err := m.Get("alice")
	require.NoError(t, err)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(w.Root(), "link")))

	var escErr *PathEscapeError
	_, err = w.ReadFile("link/secret.txt")
	require.Error(t, err)
	assert.True(t, errors.As(err, &escErr))

	assert.False(t, w.Exists("link/secret.txt"))
}

func TestTildeExpandsToWorkspaceRoot(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)
	w, err := m.Get("alice")
	require.NoError(t, err)

	require.NoError(t, w.WriteFileString("~/f.txt", "x"))
	assert.True(t, w.Exists("f.txt"))

	p, err := w.Resolve("~")
	require.NoError(t, err)
	assert.Equal(t, w.Root(), p)
}

// TestQuota covers the quota property: a violating write fails with
// *QuotaExceededError and writes nothing.
func TestQuota(t *testing.T) {
	quota := Quota{MaxSizeBytes: 100, MaxFiles: 2, MaxFileSizeBytes: 60}
	m := newTestManager(t, quota, true)
	w, err := m.Get("alice")
	require.NoError(t, err)

	var quotaErr *QuotaExceededError

	t.Run("per-file size limit", func(t *testing.T) {
		err := w.WriteFile("big.txt", make([]byte, 61))
		require.Error(t, err)
		assert.True(t, errors.As(err, &quotaErr))
		assert.False(t, w.Exists("big.txt"))
	})

	t.Run("total size limit", func(t *testing.T) {
		require.NoError(t, w.WriteFile("a.txt", make([]byte, 60)))
		err := w.WriteFile("b.txt", make([]byte, 41))
		require.Error(t, err)
		assert.True(t, errors.As(err, &quotaErr))
		assert.False(t, w.Exists("b.txt"))
	})

	t.Run("overwrite does not double-count", func(t *testing.T) {
		require.NoError(t, w.WriteFile("a.txt", make([]byte, 50)))
	})

	t.Run("file count limit", func(t *testing.T) {
		require.NoError(t, w.WriteFile("b.txt", make([]byte, 10)))
		err := w.WriteFile("c.txt", []byte("x"))
		require.Error(t, err)
		assert.True(t, errors.As(err, &quotaErr))
		assert.False(t, w.Exists("c.txt"))
	})

	t.Run("disabled enforcement", func(t *testing.T) {
		m2 := newTestManager(t, quota, false)
		w2, err := m2.Get("bob")
		require.NoError(t, err)
		require.NoError(t, w2.WriteFile("big.txt", make([]byte, 500)))
	})
}

func TestManagerIdempotentCreateAndDelete(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)

	w1, err := m.Get("alice")
	require.NoError(t, err)
	w2, err := m.Get("alice")
	require.NoError(t, err)
	assert.Same(t, w1, w2)

	require.NoError(t, w1.WriteFileString("f.txt", "x"))
	require.NoError(t, m.Delete("alice"))

	_, statErr := os.Stat(w1.Root())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweepOlderThan(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)

	old, err := m.Get("old-user")
	require.NoError(t, err)
	fresh, err := m.Get("fresh-user")
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old.Root(), stale, stale))

	removed, err := m.SweepOlderThan(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, statErr := os.Stat(old.Root())
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(fresh.Root())
	assert.NoError(t, statErr)
}

func TestUsage(t *testing.T) {
	m := newTestManager(t, DefaultQuota, true)
	w, err := m.Get("alice")
	require.NoError(t, err)

	require.NoError(t, w.WriteFile("a.txt", make([]byte, 10)))
	require.NoError(t, w.WriteFile("d/b.txt", make([]byte, 5)))

	bytes, files, err := w.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(15), bytes)
	assert.Equal(t, 2, files)
}
