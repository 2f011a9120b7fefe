package ingest

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/five82/stm2mon/internal/sink"
)

// Metrics are the Prometheus collectors updated by the ingestion loop.
type Metrics struct {
	lines            prometheus.Counter
	rejected         prometheus.Counter
	points           *prometheus.CounterVec
	sinkErrors       *prometheus.CounterVec
	alertTransitions prometheus.Counter
	droppedEvents    prometheus.Counter
	active           prometheus.Gauge
	thickness        prometheus.Gauge
	progress         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stm2_lines_total",
			Help: "Lines read from the followed log file.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stm2_lines_rejected_total",
			Help: "Lines that were neither markers nor valid samples.",
		}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stm2_points_written_total",
			Help: "Points accepted by the time-series store.",
		}, []string{"measurement"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stm2_sink_errors_total",
			Help: "Points rejected by the time-series store.",
		}, []string{"measurement"}),
		alertTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stm2_alert_transitions_total",
			Help: "Alert level changes, including the first level of each run.",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stm2_events_dropped_total",
			Help: "Events discarded because the consumer fell behind.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stm2_session_active",
			Help: "1 while an ingestion session is running.",
		}),
		thickness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stm2_thickness",
			Help: "Thickness of the most recent sample.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stm2_progress_percentage",
			Help: "Thickness of the most recent sample as a percentage of the target.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.lines, m.rejected, m.points, m.sinkErrors, m.alertTransitions,
			m.droppedEvents, m.active, m.thickness, m.progress,
		)
	}
	return m
}

func (m *Metrics) pointWritten(measurement string) {
	m.points.WithLabelValues(measurement).Inc()
}

func (m *Metrics) sinkFailed(err error) {
	measurement := "unknown"
	var se *sink.Error
	if errors.As(err, &se) {
		measurement = se.Measurement
	}
	m.sinkErrors.WithLabelValues(measurement).Inc()
}
