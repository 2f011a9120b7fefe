// Package ingest runs the STM-2 ingestion engine: it follows a log file,
// parses each new line, writes samples to the time-series store and raises
// an edge-triggered alert when thickness crosses a fraction of the target.
//
// # Overview
//
// A Controller supervises zero or one running session:
//
//	ctrl := ingest.NewController(ingest.Options{Sink: sink.NewMetrics(w)})
//	if err := ctrl.Start(ctx, cfg); err != nil {
//		// errors.Is(err, ingest.ErrAlreadyRunning / ErrInvalidConfig /
//		// ErrFileAccess / ErrSinkUnavailable)
//	}
//	for ev := range ctrl.Events() { ... }
//	_ = ctrl.Stop()
//
// # Session Lifecycle
//
//	Idle ──Start──> Running ──Stop──> Stopping ──> Stopped
//	                   │
//	                   └── file unreadable ──> Errored
//
// Start validates the run, opens the log at its end, and writes the run
// settings point. Only when all three succeed does the session goroutine
// start. A failed settings write aborts the start with ErrSinkUnavailable.
//
// While running, the session reads one line at a time. When nothing new is
// available it waits for PollInterval, watching for cancellation. Each
// sample is written to the store, then handed to the alert tracker; a
// level change produces an alert point. Failed writes are logged, counted
// and reported as EventSinkError. They never stop the loop.
//
// If the file disappears or can no longer be read the session ends with an
// error wrapping ErrFileAccess. The controller becomes idle again, keeps the
// error in LastError and publishes EventFailed. It does not retry.
//
// # Concurrency
//
// The controller's mutex guards the active flag and the current handle.
// Start holds it for the whole start sequence so concurrent starts resolve
// to exactly one session and ErrAlreadyRunning for the rest. Stop cancels
// the session and waits up to StopTimeout for it to exit; it never blocks
// longer than that.
//
// The log file is owned by the session goroutine from open to close.
// Events are published on a buffered channel without blocking. A consumer
// that falls behind loses events rather than stalling ingestion.
package ingest
