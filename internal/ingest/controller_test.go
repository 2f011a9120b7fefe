package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/sink"
)

type memWriter struct {
	mu     sync.Mutex
	points []sink.Point
	fail   func(sink.Point) error
}

func (w *memWriter) WritePoints(_ context.Context, points ...sink.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range points {
		if w.fail != nil {
			if err := w.fail(p); err != nil {
				return err
			}
		}
	}
	w.points = append(w.points, points...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func (w *memWriter) setFail(fn func(sink.Point) error) {
	w.mu.Lock()
	w.fail = fn
	w.mu.Unlock()
}

func (w *memWriter) snapshot() []sink.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sink.Point(nil), w.points...)
}

func (w *memWriter) where(keep func(sink.Point) bool) []sink.Point {
	var out []sink.Point
	for _, p := range w.snapshot() {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// gateWriter holds sample writes until gate is closed while armed.
type gateWriter struct {
	memWriter
	armed   atomic.Bool
	gate    chan struct{}
	blocked chan struct{}
}

func (w *gateWriter) WritePoints(ctx context.Context, points ...sink.Point) error {
	if len(points) > 0 && isSample(points[0]) && w.armed.Load() {
		select {
		case w.blocked <- struct{}{}:
		default:
		}
		<-w.gate
	}
	return w.memWriter.WritePoints(ctx, points...)
}

func isSample(p sink.Point) bool { return p.Measurement == sink.MeasurementSample }

func isAlert(p sink.Point) bool {
	_, ok := p.Fields["alert_state"]
	return p.Measurement == sink.MeasurementSettings && ok
}

func isSettings(p sink.Point) bool {
	_, ok := p.Fields["target_thickness"]
	return p.Measurement == sink.MeasurementSettings && ok
}

func newTestController(t *testing.T, w *memWriter) *Controller {
	t.Helper()
	c := NewController(Options{
		Sink:         sink.NewMetrics(w),
		PollInterval: 5 * time.Millisecond,
		StopTimeout:  time.Second,
	})
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func newLogFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run42.log")
	if err := os.WriteFile(path, []byte("Start Log\nTime,Rate,Thickness,Frequency\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func testConfig(path string) RunConfig {
	return RunConfig{
		LogPath:         path,
		Material:        "Al",
		Density:         2.7,
		ZRatio:          1.08,
		TargetThickness: 100,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitEvent(t *testing.T, c *Controller, kind EventKind) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestStart_InvalidConfig(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)

	tests := []struct {
		name string
		cfg  RunConfig
	}{
		{"empty path", RunConfig{Material: "Al", TargetThickness: 100}},
		{"empty material", RunConfig{LogPath: newLogFile(t), TargetThickness: 100}},
		{"fraction above one", RunConfig{LogPath: newLogFile(t), Material: "Al", AlertFraction: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Start(context.Background(), tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Start error = %v, want ErrInvalidConfig", err)
			}
			if Category(err) != "configuration" {
				t.Fatalf("Category = %q, want %q", Category(err), "configuration")
			}
		})
	}
	if c.Running() {
		t.Fatal("Running = true after failed starts")
	}
	if n := len(w.snapshot()); n != 0 {
		t.Fatalf("wrote %d points, want 0", n)
	}
}

func TestStart_MissingFile(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)

	err := c.Start(context.Background(), testConfig(filepath.Join(t.TempDir(), "nope.log")))
	if !errors.Is(err, ErrFileAccess) {
		t.Fatalf("Start error = %v, want ErrFileAccess", err)
	}
	if c.Running() {
		t.Fatal("Running = true after failed start")
	}
	if n := len(w.snapshot()); n != 0 {
		t.Fatalf("wrote %d points, want 0", n)
	}
}

func TestStart_SinkUnavailable(t *testing.T) {
	w := &memWriter{}
	w.setFail(func(sink.Point) error { return errors.New("connection refused") })
	c := newTestController(t, w)
	path := newLogFile(t)

	err := c.Start(context.Background(), testConfig(path))
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("Start error = %v, want ErrSinkUnavailable", err)
	}
	if !sink.IsSinkError(err) {
		t.Fatalf("Start error = %v, want a wrapped sink error", err)
	}
	if c.Running() {
		t.Fatal("Running = true after failed start")
	}

	w.setFail(nil)
	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start after sink recovered: %v", err)
	}
}

func TestStart_WritesSettingsPoint(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := waitEvent(t, c, EventStarted)
	if ev.Run.RunID != "run42" {
		t.Fatalf("RunID = %q, want %q", ev.Run.RunID, "run42")
	}
	if ev.SessionID == "" {
		t.Fatal("SessionID is empty")
	}

	settings := w.where(isSettings)
	if len(settings) != 1 {
		t.Fatalf("got %d settings points, want 1", len(settings))
	}
	p := settings[0]
	if p.Tags["run_id"] != "run42" {
		t.Errorf("run_id tag = %q, want %q", p.Tags["run_id"], "run42")
	}
	if p.Fields["target_thickness"] != 100 {
		t.Errorf("target_thickness = %v, want 100", p.Fields["target_thickness"])
	}
	if p.Fields["alert_threshold"] != 80 {
		t.Errorf("alert_threshold = %v, want 80", p.Fields["alert_threshold"])
	}
	if !c.Running() {
		t.Fatal("Running = false after Start")
	}
}

func TestSession_SamplesAndAlertTransitions(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	appendLog(t, path, "Stop Log\n"+
		"1.0,0.5,50,5990000\n"+
		"garbage line\n"+
		"2.0,0.5,50,5980000\n"+
		"3.0,0.5,85,5970000\r\n"+
		"4.0,0.5,85,5960000\n"+
		"\n"+
		"5.0,0.5,40,5950000\n"+
		"6.0,0.5,90,5940000\n")

	waitFor(t, "six samples", func() bool { return len(w.where(isSample)) == 6 })
	waitFor(t, "four alerts", func() bool { return len(w.where(isAlert)) == 4 })

	wantThickness := []float64{50, 50, 85, 85, 40, 90}
	for i, p := range w.where(isSample) {
		if p.Fields["thickness"] != wantThickness[i] {
			t.Errorf("sample %d thickness = %v, want %v", i, p.Fields["thickness"], wantThickness[i])
		}
		if p.Fields["progress_percentage"] != wantThickness[i] {
			t.Errorf("sample %d progress = %v, want %v", i, p.Fields["progress_percentage"], wantThickness[i])
		}
		if p.Tags["material"] != "Al" || p.Tags["run_id"] != "run42" {
			t.Errorf("sample %d tags = %v", i, p.Tags)
		}
	}

	wantLevels := []float64{0, 1, 0, 1}
	for i, p := range w.where(isAlert) {
		if p.Fields["alert_state"] != wantLevels[i] {
			t.Errorf("alert %d = %v, want %v", i, p.Fields["alert_state"], wantLevels[i])
		}
	}

	if got := testutil.ToFloat64(c.metrics.rejected); got != 1 {
		t.Errorf("rejected lines = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.metrics.alertTransitions); got != 4 {
		t.Errorf("alert transitions = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.metrics.thickness); got != 90 {
		t.Errorf("thickness gauge = %v, want 90", got)
	}
}

func TestStart_ConcurrentCallsStartOneSession(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Start(context.Background(), testConfig(path))
		}()
	}
	wg.Wait()
	close(errs)

	var started, rejected int
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, ErrAlreadyRunning):
			rejected++
		default:
			t.Fatalf("unexpected Start error: %v", err)
		}
	}
	if started != 1 || rejected != callers-1 {
		t.Fatalf("started = %d, rejected = %d; want 1 and %d", started, rejected, callers-1)
	}
	if n := len(w.where(isSettings)); n != 1 {
		t.Fatalf("settings points = %d, want 1", n)
	}
}

func TestStop_WhenIdle(t *testing.T) {
	c := newTestController(t, &memWriter{})
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop error = %v, want ErrNotRunning", err)
	}
	if Category(ErrNotRunning) != "precondition" {
		t.Fatalf("Category(ErrNotRunning) = %q", Category(ErrNotRunning))
	}
}

func TestStop_ReleasesFileAndAllowsRestart(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	begin := time.Now()
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("Stop took %v", elapsed)
	}
	if c.Running() {
		t.Fatal("Running = true after Stop")
	}
	waitEvent(t, c, EventStopped)
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second Stop error = %v, want ErrNotRunning", err)
	}

	// Nothing appended after Stop is ingested.
	appendLog(t, path, "1.0,0.5,10,6000000\n")
	time.Sleep(30 * time.Millisecond)
	if n := len(w.where(isSample)); n != 0 {
		t.Fatalf("samples after Stop = %d, want 0", n)
	}

	if err := os.Rename(path, path+".done"); err != nil {
		t.Fatalf("rename after Stop: %v", err)
	}
	next := newLogFile(t)
	if err := c.Start(context.Background(), testConfig(next)); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestSession_DeletedFileFails(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	ev := waitEvent(t, c, EventFailed)
	if !errors.Is(ev.Err, ErrFileAccess) {
		t.Fatalf("failure = %v, want ErrFileAccess", ev.Err)
	}
	waitFor(t, "session to end", func() bool { return !c.Running() })
	if !errors.Is(c.LastError(), ErrFileAccess) {
		t.Fatalf("LastError = %v, want ErrFileAccess", c.LastError())
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop after failure = %v, want ErrNotRunning", err)
	}

	if err := c.Start(context.Background(), testConfig(newLogFile(t))); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	if c.LastError() != nil {
		t.Fatalf("LastError = %v after successful Start", c.LastError())
	}
}

func TestSession_SinkErrorsAreNotFatal(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.setFail(func(sink.Point) error { return errors.New("timeout") })
	appendLog(t, path, "1.0,0.5,10,6000000\n")

	ev := waitEvent(t, c, EventSinkError)
	if !sink.IsSinkError(ev.Err) {
		t.Fatalf("event error = %v, want sink error", ev.Err)
	}
	if !c.Running() {
		t.Fatal("session ended after sink error")
	}

	w.setFail(nil)
	appendLog(t, path, "2.0,0.5,20,5990000\n")
	waitFor(t, "sample after recovery", func() bool { return len(w.where(isSample)) == 1 })

	// The alert write failed with the first sample, so it is retried.
	waitFor(t, "retried alert", func() bool { return len(w.where(isAlert)) == 1 })
	if got := w.where(isSample)[0].Fields["thickness"]; got != 20 {
		t.Fatalf("thickness = %v, want 20", got)
	}
}

func TestSession_AlertWriteFailureIsRetried(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.setFail(func(p sink.Point) error {
		if isAlert(p) {
			return errors.New("rejected")
		}
		return nil
	})
	appendLog(t, path, "1.0,0.5,90,6000000\n")
	waitEvent(t, c, EventSinkError)

	w.setFail(nil)
	appendLog(t, path, "2.0,0.5,91,5990000\n")
	waitFor(t, "alert write", func() bool { return len(w.where(isAlert)) == 1 })
	if got := w.where(isAlert)[0].Fields["alert_state"]; got != float64(alert.Above) {
		t.Fatalf("alert_state = %v, want 1", got)
	}
}

func TestStart_RestartEmitsAlertAgain(t *testing.T) {
	w := &memWriter{}
	c := newTestController(t, w)
	path := newLogFile(t)

	for run := 1; run <= 2; run++ {
		if err := c.Start(context.Background(), testConfig(path)); err != nil {
			t.Fatalf("Start %d: %v", run, err)
		}
		appendLog(t, path, "1.0,0.5,95,6000000\n")
		waitFor(t, "alert", func() bool { return len(w.where(isAlert)) == run })
		if err := c.Stop(); err != nil {
			t.Fatalf("Stop %d: %v", run, err)
		}
	}
}

func TestController_DropsEventsWhenConsumerLags(t *testing.T) {
	w := &memWriter{}
	c := NewController(Options{
		Sink:         sink.NewMetrics(w),
		PollInterval: 5 * time.Millisecond,
		EventBuffer:  1,
	})
	t.Cleanup(func() { _ = c.Stop() })
	path := newLogFile(t)

	if err := c.Start(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	appendLog(t, path, "1.0,0.5,10,6000000\n2.0,0.5,20,6000000\n3.0,0.5,30,6000000\n")
	waitFor(t, "samples", func() bool { return len(w.where(isSample)) == 3 })
	waitFor(t, "dropped events", func() bool { return testutil.ToFloat64(c.metrics.droppedEvents) > 0 })
}

func TestStop_TimeoutLeavesNewSessionUntouched(t *testing.T) {
	w := &gateWriter{gate: make(chan struct{}), blocked: make(chan struct{}, 1)}
	w.armed.Store(true)
	var release sync.Once
	open := func() { release.Do(func() { close(w.gate) }) }
	c := NewController(Options{
		Sink:         sink.NewMetrics(w),
		PollInterval: 5 * time.Millisecond,
		StopTimeout:  100 * time.Millisecond,
	})
	t.Cleanup(func() {
		open()
		_ = c.Stop()
	})

	first := newLogFile(t)
	if err := c.Start(context.Background(), testConfig(first)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stuck := waitEvent(t, c, EventStarted).SessionID
	appendLog(t, first, "1.0,0.5,10,6000000\n")
	select {
	case <-w.blocked:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the sample write to block")
	}

	began := time.Now()
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop = %v, want nil", err)
	}
	if elapsed := time.Since(began); elapsed > time.Second {
		t.Fatalf("Stop took %v, want about the stop timeout", elapsed)
	}
	if c.Running() {
		t.Fatal("Running() = true after timed out Stop")
	}

	w.armed.Store(false)
	second := newLogFile(t)
	if err := c.Start(context.Background(), testConfig(second)); err != nil {
		t.Fatalf("restart: %v", err)
	}
	fresh := waitEvent(t, c, EventStarted).SessionID
	if fresh == stuck {
		t.Fatalf("restart reused session id %q", fresh)
	}

	open()
	ev := waitEvent(t, c, EventStopped)
	if ev.SessionID != stuck {
		t.Fatalf("stopped session = %q, want %q", ev.SessionID, stuck)
	}
	if !c.Running() {
		t.Fatal("late exit of the old session cleared the new one")
	}
	if err := c.LastError(); err != nil {
		t.Fatalf("LastError = %v, want nil", err)
	}

	appendLog(t, second, "2.0,0.5,20,6000000\n")
	for {
		ev := waitEvent(t, c, EventSample)
		if ev.SessionID == fresh {
			break
		}
	}
}
