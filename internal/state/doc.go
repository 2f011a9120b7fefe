// Package state provides thread-safe run state for the stm2mon front-ends.
//
// # Overview
//
// The ingestion controller publishes events on a channel. A single pump
// goroutine drains that channel into a Store, and the UI (or the headless
// status logger) reads Snapshots on its own schedule:
//
//	Producer (pump):               Consumer (UI):
//	┌─────────────────┐           ┌──────────────────┐
//	│ ev := <-events  │           │                  │
//	│ store.Apply(ev) │──────────→│ store.Snapshot() │
//	│ repeat...       │  (mutex)  │ render           │
//	└─────────────────┘           └──────────────────┘
//
// # Apply Semantics
//
//   - EventStarted replaces the whole snapshot with the new run.
//   - EventSample updates the last reading, progress and sample count.
//   - EventAlert updates the alert badge.
//   - EventSinkError records the error and bumps ConsecutiveFailures; a
//     stored sample resets the count.
//   - EventStopped and EventFailed change Status but keep the last reading
//     on screen.
//
// Events carrying a session ID other than the current one are dropped, so a
// late event from a finished session cannot overwrite a new run.
//
// # Sink Health
//
// SinkDegraded reports two or more consecutive write failures. A single
// failure is often a transient timeout and is only shown as the last error.
//
// # Concurrency Model
//
// Apply takes the write lock, Snapshot the read lock. Snapshot returns a
// copy by value with the error re-wrapped, so the UI never shares mutable
// state with the pump.
//
// The zero Store is ready to use.
package state
