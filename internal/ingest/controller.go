package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/logtail"
	"github.com/five82/stm2mon/internal/sink"
)

const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultStopTimeout  = time.Second
	DefaultEventBuffer  = 256
)

// Options configure a Controller. Sink is required.
type Options struct {
	Sink    *sink.Metrics
	Alerts  *alert.Tracker // nil creates a private tracker
	Metrics *Metrics       // nil creates unregistered collectors
	Logger  *slog.Logger   // nil discards

	PollInterval time.Duration
	StopTimeout  time.Duration
	EventBuffer  int
}

// Controller supervises at most one ingestion session.
type Controller struct {
	sink    *sink.Metrics
	alerts  *alert.Tracker
	metrics *Metrics
	logger  *slog.Logger

	poll        time.Duration
	stopTimeout time.Duration
	events      chan Event

	mu      sync.Mutex
	active  bool
	current *handle
	lastErr error
}

type handle struct {
	id       string
	runID    string
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
}

// NewController applies defaults to opts.
func NewController(opts Options) *Controller {
	c := &Controller{
		sink:        opts.Sink,
		alerts:      opts.Alerts,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		poll:        opts.PollInterval,
		stopTimeout: opts.StopTimeout,
	}
	if c.alerts == nil {
		c.alerts = alert.NewTracker()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	if c.stopTimeout <= 0 {
		c.stopTimeout = DefaultStopTimeout
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	c.events = make(chan Event, buffer)
	return c
}

// Events delivers session events. The channel is never closed.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// LastError returns the error that ended the most recent session, if it
// failed. A successful Start clears it.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start validates cfg, opens the log at its end, writes the settings point
// and launches the session goroutine. ctx bounds the start sequence only;
// the session runs until Stop or a file failure.
func (c *Controller) Start(ctx context.Context, cfg RunConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrAlreadyRunning
	}

	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	follower, err := logtail.Follow(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileAccess, err)
	}

	threshold := cfg.AlertThreshold()
	if err := c.sink.WriteSettings(ctx, cfg.RunID, cfg.TargetThickness, threshold); err != nil {
		_ = follower.Close()
		c.metrics.sinkFailed(err)
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	c.metrics.pointWritten(sink.MeasurementSettings)

	// Every session starts with an unknown alert level so its first
	// sample always writes one.
	c.alerts.Reset(cfg.RunID)

	id := uuid.NewString()
	sessionCtx, cancel := context.WithCancel(context.Background())
	h := &handle{id: id, runID: cfg.RunID, cancel: cancel, done: make(chan struct{})}
	logger := c.logger.With("session_id", id, "run_id", cfg.RunID)
	s := &session{
		id:        id,
		cfg:       cfg,
		threshold: threshold,
		follower:  follower,
		sink:      c.sink,
		alerts:    c.alerts,
		metrics:   c.metrics,
		logger:    logger,
		poll:      c.poll,
		emit: func(ev Event) {
			ev.SessionID = id
			c.publish(ev)
		},
	}

	c.active = true
	c.current = h
	c.lastErr = nil
	c.metrics.active.Set(1)

	logger.Info("ingestion started",
		"path", cfg.LogPath,
		"material", cfg.Material,
		"target_thickness", cfg.TargetThickness,
		"alert_threshold", threshold,
	)
	s.emit(Event{Kind: EventStarted, Run: cfg})

	go c.supervise(sessionCtx, h, s)
	return nil
}

func (c *Controller) supervise(ctx context.Context, h *handle, s *session) {
	defer close(h.done)

	err := s.run(ctx)
	h.cancel()

	c.mu.Lock()
	if c.current == h {
		c.active = false
		c.current = nil
		c.metrics.active.Set(0)
		if err != nil {
			c.lastErr = err
		}
	}
	c.mu.Unlock()

	if err != nil {
		s.logger.Error("ingestion failed", "error", err)
		s.emit(Event{Kind: EventFailed, Err: err})
		return
	}
	s.logger.Info("ingestion stopped")
	s.emit(Event{Kind: EventStopped})
}

// Stop cancels the running session and waits up to the stop timeout for it
// to release the log file.
func (c *Controller) Stop() error {
	c.mu.Lock()
	h := c.current
	if !c.active || h == nil || h.stopping {
		c.mu.Unlock()
		return ErrNotRunning
	}
	h.stopping = true
	c.mu.Unlock()

	h.cancel()

	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		c.logger.Warn("session did not stop in time",
			"session_id", h.id,
			"run_id", h.runID,
			"timeout", c.stopTimeout,
		)
		c.mu.Lock()
		if c.current == h {
			c.active = false
			c.current = nil
			c.metrics.active.Set(0)
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *Controller) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case c.events <- ev:
	default:
		c.metrics.droppedEvents.Inc()
	}
}
