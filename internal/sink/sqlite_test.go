package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLiteWriter {
	t.Helper()
	w, err := OpenSQLite(filepath.Join(t.TempDir(), "points.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	w := openTestSQLite(t)
	fixed := time.Unix(1700000000, 0)
	w.now = func() time.Time { return fixed }
	ctx := context.Background()

	m := NewMetrics(w)
	if err := m.WriteSettings(ctx, "run", 100, 80); err != nil {
		t.Fatalf("WriteSettings: %v", err)
	}
	if err := m.WriteAlert(ctx, "run", 1); err != nil {
		t.Fatalf("WriteAlert: %v", err)
	}

	points, err := w.Points(ctx, MeasurementSettings)
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Fields["target_thickness"] != 100 {
		t.Fatalf("first point fields = %v", points[0].Fields)
	}
	if points[1].Fields["alert_state"] != 1 {
		t.Fatalf("second point fields = %v", points[1].Fields)
	}
	if !points[0].Time.Equal(fixed) {
		t.Fatalf("Time = %v, want %v", points[0].Time, fixed)
	}
	if points[0].Tags["run_id"] != "run" {
		t.Fatalf("tags = %v", points[0].Tags)
	}

	samples, err := w.Points(ctx, MeasurementSample)
	if err != nil {
		t.Fatalf("Points(sample): %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("got %d sample points, want 0", len(samples))
	}
}

func TestSQLiteWriter_ExplicitTimestamp(t *testing.T) {
	w := openTestSQLite(t)
	ts := time.Unix(42, 7)
	if err := w.WritePoints(context.Background(), Point{Measurement: "m", Time: ts, Fields: map[string]float64{"v": 1}}); err != nil {
		t.Fatalf("WritePoints: %v", err)
	}
	points, err := w.Points(context.Background(), "m")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(points) != 1 || !points[0].Time.Equal(ts) {
		t.Fatalf("points = %+v, want one point at %v", points, ts)
	}
}

func TestSQLiteWriter_ClosedRejectsWrites(t *testing.T) {
	w := openTestSQLite(t)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.WritePoints(context.Background(), Point{Measurement: "m"}); err == nil {
		t.Fatal("WritePoints after Close returned nil error")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatal("OpenSQLite with empty path returned nil error")
	}
}
