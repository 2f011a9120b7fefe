package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

const (
	defaultInfluxURL      = "http://localhost:8086"
	defaultInfluxDatabase = "stm2"
	defaultInfluxTimeout  = 5 * time.Second
	defaultUserAgent      = "stm2mon/0.1"
)

// InfluxConfig configures the InfluxDB 1.x writer.
type InfluxConfig struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// InfluxWriter writes points over the InfluxDB 1.x HTTP API.
type InfluxWriter struct {
	client   client.Client
	database string
	timeout  time.Duration
}

var _ Writer = (*InfluxWriter)(nil)

// NewInfluxWriter builds a writer. It does not contact the server; use Ping.
func NewInfluxWriter(cfg InfluxConfig) (*InfluxWriter, error) {
	addr := strings.TrimSpace(cfg.URL)
	if addr == "" {
		addr = defaultInfluxURL
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	database := strings.TrimSpace(cfg.Database)
	if database == "" {
		database = defaultInfluxDatabase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultInfluxTimeout
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:      addr,
		Username:  cfg.Username,
		Password:  cfg.Password,
		UserAgent: defaultUserAgent,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}
	return &InfluxWriter{client: c, database: database, timeout: timeout}, nil
}

// Ping checks that the server answers.
func (w *InfluxWriter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := w.client.Ping(w.timeout); err != nil {
		return fmt.Errorf("ping influx: %w", err)
	}
	return nil
}

// WritePoints sends all points in one batch.
func (w *InfluxWriter) WritePoints(ctx context.Context, points ...Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: w.database})
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	for _, p := range points {
		fields := make(map[string]interface{}, len(p.Fields))
		for k, v := range p.Fields {
			fields[k] = v
		}
		var pt *client.Point
		if p.Time.IsZero() {
			pt, err = client.NewPoint(p.Measurement, p.Tags, fields)
		} else {
			pt, err = client.NewPoint(p.Measurement, p.Tags, fields, p.Time)
		}
		if err != nil {
			return fmt.Errorf("build point: %w", err)
		}
		bp.AddPoint(pt)
	}

	if err := w.client.Write(bp); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (w *InfluxWriter) Close() error {
	return w.client.Close()
}
