// internal/core/ports/errors.go
package ports

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotFound is returned when a remote document or local mirror entry is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("version conflict")
	// ErrCorrupt marks data that cannot be decoded.
	ErrCorrupt = errors.New("corrupt document")
)

// ConflictError is returned when the remote version differs from the one the
// writer presented.
type ConflictError struct {
	Path     string
	Expected VersionToken
	Current  VersionToken
}

func (e *ConflictError) Error() string {
	if e.Current.IsNull() {
		return fmt.Sprintf("version conflict on %s: expected %q", e.Path, e.Expected)
	}
	return fmt.Sprintf("version conflict on %s: expected %q, current %q", e.Path, e.Expected, e.Current)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// TransportError wraps any non-success exchange with the remote store.
type TransportError struct {
	Op          string
	Path        string
	StatusCode  int
	RateLimited bool
	RetryAfter  time.Duration
	Err         error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether repeating the same request may succeed.
func (e *TransportError) Temporary() bool {
	if e.RateLimited || e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= http.StatusInternalServerError
}
