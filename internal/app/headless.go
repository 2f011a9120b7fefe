package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/five82/stm2mon/internal/config"
	"github.com/five82/stm2mon/internal/ingest"
	"github.com/five82/stm2mon/internal/state"
)

const (
	headlessCheckInterval  = 250 * time.Millisecond
	headlessReportInterval = 10 * time.Second
)

// RunHeadless starts one session from the run section of cfg and keeps it
// running until ctx is cancelled or the session fails.
func RunHeadless(ctx context.Context, ctrl *ingest.Controller, store *state.Store, cfg config.Config, logger *slog.Logger) error {
	runCfg, err := cfg.Run.Input().Config(cfg.Ingest.AlertFraction)
	if err != nil {
		logStartError(logger, err)
		return err
	}
	if err := ctrl.Start(ctx, runCfg); err != nil {
		logStartError(logger, err)
		return err
	}
	logger.Info("headless ingestion running, send SIGINT or SIGTERM to stop", "path", runCfg.LogPath)

	check := time.NewTicker(headlessCheckInterval)
	defer check.Stop()
	lastReport := time.Now()
	reported := -1

	for {
		select {
		case <-ctx.Done():
			if err := ctrl.Stop(); err != nil && !errors.Is(err, ingest.ErrNotRunning) {
				return err
			}
			return nil
		case <-check.C:
		}

		if !ctrl.Running() {
			return ctrl.LastError()
		}

		snap := store.Snapshot()
		if time.Since(lastReport) >= headlessReportInterval && snap.HasSample && snap.Samples != reported {
			logger.Info("progress",
				"run_id", snap.Run.RunID,
				"samples", snap.Samples,
				"thickness", snap.LastSample.Thickness,
				"progress_percentage", snap.Progress,
				"alert_state", int(snap.AlertLevel),
				"sink_degraded", snap.SinkDegraded(),
			)
			lastReport = time.Now()
			reported = snap.Samples
		}
	}
}
