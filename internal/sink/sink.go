package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/stm2"
)

// Measurement names.
const (
	MeasurementSample   = "stm2"
	MeasurementSettings = "stm2_settings"
)

// Point is one tagged observation.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Time        time.Time // zero lets the store stamp the point
}

// Writer is implemented by time-series backends.
type Writer interface {
	WritePoints(ctx context.Context, points ...Point) error
	Close() error
}

// Error is returned for every rejected write.
type Error struct {
	Op          string
	Measurement string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.Measurement, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsSinkError reports whether err came from a sink write.
func IsSinkError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// Run identifies the run a sample belongs to. All values become tags.
type Run struct {
	ID       string
	Material string
	Density  float64
	ZRatio   float64
}

// Tags returns the tag set written with every sample.
func (r Run) Tags() map[string]string {
	return map[string]string{
		"run_id":   r.ID,
		"material": r.Material,
		"density":  formatFloat(r.Density),
		"z_ratio":  formatFloat(r.ZRatio),
	}
}

// Metrics adapts a Writer to the three writes the ingestion session makes.
type Metrics struct {
	w Writer
}

// NewMetrics wraps w.
func NewMetrics(w Writer) *Metrics {
	return &Metrics{w: w}
}

// WriteSample writes one parsed sample with its progress percentage.
func (m *Metrics) WriteSample(ctx context.Context, run Run, s stm2.Sample, progress float64) error {
	p := Point{
		Measurement: MeasurementSample,
		Tags:        run.Tags(),
		Fields: map[string]float64{
			"time":                s.Time,
			"rate":                s.Rate,
			"thickness":           s.Thickness,
			"frequency":           s.Frequency,
			"progress_percentage": progress,
		},
	}
	return m.write(ctx, "write sample", p)
}

// WriteSettings records the run target and the derived alert threshold.
func (m *Metrics) WriteSettings(ctx context.Context, runID string, target, threshold float64) error {
	p := Point{
		Measurement: MeasurementSettings,
		Tags:        map[string]string{"run_id": runID},
		Fields: map[string]float64{
			"target_thickness": target,
			"alert_threshold":  threshold,
		},
	}
	return m.write(ctx, "write settings", p)
}

// WriteAlert records an alert level transition.
func (m *Metrics) WriteAlert(ctx context.Context, runID string, level alert.Level) error {
	p := Point{
		Measurement: MeasurementSettings,
		Tags:        map[string]string{"run_id": runID},
		Fields:      map[string]float64{"alert_state": float64(level)},
	}
	return m.write(ctx, "write alert", p)
}

func (m *Metrics) write(ctx context.Context, op string, p Point) error {
	if m == nil || m.w == nil {
		return &Error{Op: op, Measurement: p.Measurement, Err: errors.New("no writer configured")}
	}
	if err := m.w.WritePoints(ctx, p); err != nil {
		return &Error{Op: op, Measurement: p.Measurement, Err: err}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
