package ingest

import (
	"errors"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("ingestion already running")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("ingestion not running")
	// ErrInvalidConfig marks run configuration problems.
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrFileAccess marks log file problems, at start or while tailing.
	ErrFileAccess = errors.New("log file not accessible")
	// ErrSinkUnavailable marks a failed initial settings write.
	ErrSinkUnavailable = errors.New("time-series store unavailable")
)

// Category names the kind of failure for operator-facing messages.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "configuration"
	case errors.Is(err, ErrFileAccess):
		return "file access"
	case errors.Is(err, ErrSinkUnavailable):
		return "sink connectivity"
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotRunning):
		return "precondition"
	default:
		return ""
	}
}
