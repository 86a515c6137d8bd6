package workspace

import "fmt"

// PathEscapeError is returned when a path resolves outside the workspace
// root after symlink and ".." resolution. Never swallowed — callers map it
// to a protocol error.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path escapes workspace: %s", e.Path)
}

// QuotaExceededError is returned when a write would violate the workspace
// quota. No bytes are written when this is returned.
type QuotaExceededError struct {
	Reason string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("workspace quota exceeded: %s", e.Reason)
}
