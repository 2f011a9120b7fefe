// Package alert turns thickness readings into edge-triggered over/under
// threshold transitions, one state per run.
package alert

import "sync"

// Level is the binary alert state written to the settings series.
type Level int

const (
	Below Level = 0
	Above Level = 1
)

// Transition is emitted when a run's level changes, including the first
// observation after Reset.
type Transition struct {
	RunID string
	Level Level
}

// LevelFor reports Above when thickness has reached threshold.
func LevelFor(thickness, threshold float64) Level {
	if thickness >= threshold {
		return Above
	}
	return Below
}

// Tracker remembers the previous level per run identifier. A missing entry
// means the level is unknown. Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	prev map[string]Level
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{prev: make(map[string]Level)}
}

// Reset forgets the level for runID so the next evaluation always emits.
func (t *Tracker) Reset(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prev != nil {
		delete(t.prev, runID)
	}
}

// Evaluate records the level for thickness and returns a transition when it
// differs from the previous one.
func (t *Tracker) Evaluate(runID string, thickness, threshold float64) (Transition, bool) {
	level := LevelFor(thickness, threshold)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prev == nil {
		t.prev = make(map[string]Level)
	}
	if prev, ok := t.prev[runID]; ok && prev == level {
		return Transition{}, false
	}
	t.prev[runID] = level
	return Transition{RunID: runID, Level: level}, true
}

// Current returns the last recorded level for runID.
func (t *Tracker) Current(runID string) (Level, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	level, ok := t.prev[runID]
	return level, ok
}
