package app

import (
	"context"
	"log/slog"

	"github.com/five82/stm2mon/internal/ingest"
	"github.com/five82/stm2mon/internal/state"
)

// StartPump launches a background goroutine that folds controller events
// into the store until ctx is cancelled. It returns immediately.
func StartPump(ctx context.Context, store *state.Store, events <-chan ingest.Event, logger *slog.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				apply(store, ev, logger)
			}
		}
	}()
}

func apply(store *state.Store, ev ingest.Event, logger *slog.Logger) {
	store.Apply(ev)
	if ev.Kind == ingest.EventFailed {
		logger.Warn("session ended with error",
			"session_id", ev.SessionID,
			"category", ingest.Category(ev.Err),
			"error", ev.ErrorText(),
		)
	}
}
