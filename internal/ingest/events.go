package ingest

import (
	"time"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/stm2"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventStarted EventKind = iota
	EventSample
	EventAlert
	EventSinkError
	EventStopped
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventSample:
		return "sample"
	case EventAlert:
		return "alert"
	case EventSinkError:
		return "sink_error"
	case EventStopped:
		return "stopped"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is published by a session for the presentation layer.
type Event struct {
	Kind      EventKind
	SessionID string
	Time      time.Time

	// Run is set on EventStarted.
	Run RunConfig
	// Sample and Progress are set on EventSample and EventAlert. Stored
	// reports whether the sample point was accepted by the store.
	Sample   stm2.Sample
	Progress float64
	Stored   bool
	// Level is set on EventAlert.
	Level alert.Level
	// Err is set on EventSinkError and EventFailed.
	Err error
}

// ErrorText returns the error payload, or "" for non-error events.
func (e Event) ErrorText() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
