package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/five82/stm2mon/internal/config"
	"github.com/five82/stm2mon/internal/sink"
)

// openSink creates the configured time-series writer. An unreachable
// InfluxDB is only a warning here; Start reports it properly when the
// settings write fails.
func openSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (sink.Writer, error) {
	switch cfg.Sink.Kind {
	case config.SinkSQLite:
		w, err := sink.OpenSQLite(cfg.Sink.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		logger.Info("writing points to sqlite", "path", cfg.Sink.SQLitePath)
		return w, nil
	default:
		w, err := sink.NewInfluxWriter(sink.InfluxConfig{
			URL:      cfg.Influx.URL,
			Database: cfg.Influx.Database,
			Username: cfg.Influx.Username,
			Password: cfg.Influx.Password,
			Timeout:  cfg.Influx.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init influx client: %w", err)
		}
		if err := w.Ping(ctx); err != nil {
			logger.Warn("influxdb not reachable", "url", cfg.Influx.URL, "error", err)
		} else {
			logger.Info("writing points to influxdb", "url", cfg.Influx.URL, "database", cfg.Influx.Database)
		}
		return w, nil
	}
}
