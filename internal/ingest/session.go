package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/logtail"
	"github.com/five82/stm2mon/internal/sink"
	"github.com/five82/stm2mon/internal/stm2"
)

// session is one run: it owns the follower from Start until run returns.
type session struct {
	id        string
	cfg       RunConfig
	threshold float64
	follower  *logtail.Follower
	sink      *sink.Metrics
	alerts    *alert.Tracker
	metrics   *Metrics
	emit      func(Event)
	logger    *slog.Logger
	poll      time.Duration
}

// run reads until ctx is cancelled (nil) or the file fails (ErrFileAccess).
func (s *session) run(ctx context.Context) error {
	defer func() {
		if err := s.follower.Close(); err != nil {
			s.logger.Warn("close log file failed", "error", err)
		}
	}()

	wait := time.NewTimer(s.poll)
	wait.Stop()
	defer wait.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.follower.Next()
		if errors.Is(err, logtail.ErrNoData) {
			wait.Reset(s.poll)
			select {
			case <-ctx.Done():
				return nil
			case <-wait.C:
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFileAccess, err)
		}

		s.handleLine(ctx, line)
	}
}

func (s *session) handleLine(ctx context.Context, raw string) {
	s.metrics.lines.Inc()

	line := stm2.Clean(raw)
	if line == "" || stm2.IsMarker(line) {
		return
	}
	sample, ok := stm2.Parse(line)
	if !ok {
		s.metrics.rejected.Inc()
		s.logger.Debug("line rejected", "line", line)
		return
	}

	// A write in flight is allowed to finish after Stop.
	writeCtx := context.WithoutCancel(ctx)

	progress := stm2.Progress(sample.Thickness, s.cfg.TargetThickness)
	stored := true
	if err := s.sink.WriteSample(writeCtx, s.cfg.Tags(), sample, progress); err != nil {
		stored = false
		s.sinkFailed(err)
	} else {
		s.metrics.pointWritten(sink.MeasurementSample)
	}
	s.metrics.thickness.Set(sample.Thickness)
	s.metrics.progress.Set(progress)
	s.emit(Event{Kind: EventSample, Sample: sample, Progress: progress, Stored: stored})

	transition, changed := s.alerts.Evaluate(s.cfg.RunID, sample.Thickness, s.threshold)
	if !changed {
		return
	}
	if err := s.sink.WriteAlert(writeCtx, s.cfg.RunID, transition.Level); err != nil {
		// Forget the level so the next sample writes it again.
		s.alerts.Reset(s.cfg.RunID)
		s.sinkFailed(err)
		return
	}
	s.metrics.pointWritten(sink.MeasurementSettings)
	s.metrics.alertTransitions.Inc()
	s.logger.Info("alert level changed",
		"level", int(transition.Level),
		"thickness", sample.Thickness,
		"threshold", s.threshold,
	)
	s.emit(Event{Kind: EventAlert, Level: transition.Level, Sample: sample, Progress: progress})
}

func (s *session) sinkFailed(err error) {
	s.metrics.sinkFailed(err)
	s.logger.Warn("sink write failed", "error", err)
	s.emit(Event{Kind: EventSinkError, Err: err})
}
