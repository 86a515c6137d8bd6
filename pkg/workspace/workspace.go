// Package workspace provides per-user sandboxed filesystem roots with
// path validation and quota enforcement. Every filesystem operation is
// mediated here: the resolved target must be a descendant of the user's
// workspace root or the operation fails with *PathEscapeError.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Quota bounds a single workspace.
type Quota struct {
	MaxSizeBytes     int64
	MaxFiles         int
	MaxFileSizeBytes int64
}

// DefaultQuota matches the server defaults; overridable via config.
var DefaultQuota = Quota{
	MaxSizeBytes:     512 * 1024 * 1024,
	MaxFiles:         10_000,
	MaxFileSizeBytes: 32 * 1024 * 1024,
}

// Workspace is a user-anchored directory root. Instances are cheap handles;
// all state lives on disk.
type Workspace struct {
	userID       string
	root         string
	quota        Quota
	enforceQuota bool
}

// UserID returns the sanitized owner id.
func (w *Workspace) UserID() string { return w.userID }

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve validates a user-supplied path and returns the absolute physical
// path inside the workspace. "~" expands to the workspace root (never the
// process home), ".." components are applied, and symlinks are followed
// before the containment check.
func (w *Workspace) Resolve(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" || p == "~" {
		return w.root, nil
	}
	if strings.HasPrefix(p, "~/") {
		p = p[2:]
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.root, p)
	}
	p = filepath.Clean(p)

	resolved, err := resolveSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	rootResolved, err := resolveSymlinks(w.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	if resolved != rootResolved && !strings.HasPrefix(resolved, rootResolved+string(filepath.Separator)) {
		return "", &PathEscapeError{Path: path}
	}
	return resolved, nil
}

// resolveSymlinks resolves symlinks on the deepest existing ancestor of p,
// then re-joins the non-existent remainder. This catches symlinked parent
// directories pointing outside the root even when the leaf does not exist.
func resolveSymlinks(p string) (string, error) {
	remainder := []string{}
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return filepath.Clean(resolved), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		remainder = append(remainder, filepath.Base(cur))
		cur = parent
	}
}

// ReadFile reads a file inside the workspace.
func (w *Workspace) ReadFile(path string) ([]byte, error) {
	p, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// WriteFile writes data to a file inside the workspace, creating parent
// directories as needed. Quota checks happen before any byte is written.
func (w *Workspace) WriteFile(path string, data []byte) error {
	p, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if err := w.checkQuota(p, int64(len(data))); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return os.WriteFile(p, data, 0o640)
}

// WriteFileString is a convenience wrapper for text payloads.
func (w *Workspace) WriteFileString(path, content string) error {
	return w.WriteFile(path, []byte(content))
}

// DeleteFile removes a file inside the workspace.
func (w *Workspace) DeleteFile(path string) error {
	p, err := w.Resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// Exists reports whether the path exists. Escaping paths return false
// instead of raising.
func (w *Workspace) Exists(path string) bool {
	p, err := w.Resolve(path)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(p)
	return statErr == nil
}

// IsFile reports whether the path is a regular file (false on escape).
func (w *Workspace) IsFile(path string) bool {
	p, err := w.Resolve(path)
	if err != nil {
		return false
	}
	info, statErr := os.Stat(p)
	return statErr == nil && info.Mode().IsRegular()
}

// IsDir reports whether the path is a directory (false on escape).
func (w *Workspace) IsDir(path string) bool {
	p, err := w.Resolve(path)
	if err != nil {
		return false
	}
	info, statErr := os.Stat(p)
	return statErr == nil && info.IsDir()
}

// ListDir returns the entry names of a directory inside the workspace.
func (w *Workspace) ListDir(path string) ([]string, error) {
	p, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Mkdir creates a directory (and parents) inside the workspace.
func (w *Workspace) Mkdir(path string) error {
	p, err := w.Resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0o750)
}

// Rmdir removes a directory. Non-recursive removal fails on non-empty
// directories.
func (w *Workspace) Rmdir(path string, recursive bool) error {
	p, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if p == w.root {
		return fmt.Errorf("cannot remove workspace root through Rmdir")
	}
	if recursive {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}

// RelPath returns the workspace-relative form of a path.
func (w *Workspace) RelPath(path string) (string, error) {
	p, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	return filepath.Rel(w.root, p)
}

// Usage walks the workspace and returns current bytes and file count.
// Computed on demand; writes soft-update via the quota check itself.
func (w *Workspace) Usage() (bytes int64, files int, err error) {
	err = filepath.Walk(w.root, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.Mode().IsRegular() {
			bytes += info.Size()
			files++
		}
		return nil
	})
	return bytes, files, err
}

// checkQuota verifies the write of size bytes to target p is within quota.
func (w *Workspace) checkQuota(p string, size int64) error {
	if !w.enforceQuota {
		return nil
	}
	if size > w.quota.MaxFileSizeBytes {
		return &QuotaExceededError{
			Reason: fmt.Sprintf("file size %d exceeds per-file limit %d", size, w.quota.MaxFileSizeBytes),
		}
	}
	bytes, files, err := w.Usage()
	if err != nil {
		return fmt.Errorf("failed to compute workspace usage: %w", err)
	}

	var existingSize int64
	exists := false
	if info, statErr := os.Stat(p); statErr == nil && info.Mode().IsRegular() {
		existingSize = info.Size()
		exists = true
	}

	if bytes-existingSize+size > w.quota.MaxSizeBytes {
		return &QuotaExceededError{
			Reason: fmt.Sprintf("workspace size would exceed %d bytes", w.quota.MaxSizeBytes),
		}
	}
	if !exists && files >= w.quota.MaxFiles {
		return &QuotaExceededError{
			Reason: fmt.Sprintf("workspace file count would exceed %d", w.quota.MaxFiles),
		}
	}
	return nil
}
