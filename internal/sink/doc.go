// Package sink writes STM-2 measurements to a time-series store.
//
// # Overview
//
// The ingestion core talks to the store through two layers:
//
//  1. Writer: the store contract. WritePoints appends tagged points; the
//     store assigns the timestamp when Point.Time is zero.
//  2. Metrics: the domain adapter. It shapes samples, run settings and alert
//     transitions into points for the two measurement series.
//
// # Series
//
//	stm2           tags: run_id material density z_ratio
//	               fields: time rate thickness frequency progress_percentage
//	stm2_settings  tags: run_id
//	               fields: target_thickness alert_threshold | alert_state
//
// # Backends
//
//   - InfluxWriter: InfluxDB 1.x HTTP API (database "stm2" by default)
//   - SQLiteWriter: a local SQLite file, one row per point with JSON encoded
//     tags and fields, for benches without an InfluxDB instance
//
// # Error Handling
//
// Every failure leaving Metrics is a *Error carrying the operation and
// measurement, so callers can tell a store outage from a parsing problem with
// errors.As. Whether a failure is fatal is the caller's decision.
package sink
