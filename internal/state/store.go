package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/ingest"
	"github.com/five82/stm2mon/internal/stm2"
)

// Status is the coarse session state shown to the operator.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Status    Status
	SessionID string
	Run       ingest.RunConfig

	LastSample stm2.Sample
	HasSample  bool
	Progress   float64
	Samples    int

	AlertLevel alert.Level
	HasAlert   bool

	LastError           error
	ConsecutiveFailures int // Number of consecutive sink write failures
	LastUpdated         time.Time
}

// SinkDegraded returns true when the store has rejected several writes in a row.
func (s Snapshot) SinkDegraded() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Apply folds one session event into the snapshot. Events from a session
// other than the current one are ignored once a newer session has started.
func (s *Store) Apply(ev ingest.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &s.snapshot
	if ev.Kind != ingest.EventStarted && snap.SessionID != "" && ev.SessionID != snap.SessionID {
		return
	}
	snap.LastUpdated = ev.Time
	if snap.LastUpdated.IsZero() {
		snap.LastUpdated = time.Now()
	}

	switch ev.Kind {
	case ingest.EventStarted:
		*snap = Snapshot{
			Status:      StatusRunning,
			SessionID:   ev.SessionID,
			Run:         ev.Run,
			LastUpdated: snap.LastUpdated,
		}
	case ingest.EventSample:
		snap.LastSample = ev.Sample
		snap.HasSample = true
		snap.Progress = ev.Progress
		snap.Samples++
		if ev.Stored {
			snap.ConsecutiveFailures = 0
		}
	case ingest.EventAlert:
		snap.AlertLevel = ev.Level
		snap.HasAlert = true
	case ingest.EventSinkError:
		snap.LastError = ev.Err
		snap.ConsecutiveFailures++
	case ingest.EventStopped:
		snap.Status = StatusStopped
	case ingest.EventFailed:
		snap.Status = StatusFailed
		snap.LastError = ev.Err
	}
}

// Fail records an error that did not come from a running session, such as
// a rejected Start.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
