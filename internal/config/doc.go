// Package config loads stm2mon settings from a TOML file, the environment
// and command line flags.
//
// # Overview
//
// Load builds a fresh viper instance per call, so tests and the headless
// runner never share global state. Values are resolved in this order, the
// first match winning:
//
//  1. Flags registered with RegisterFlags and set on the command line
//  2. STM2_* environment variables (dots become underscores, so
//     influx.database is STM2_INFLUX_DATABASE)
//  3. The config file
//  4. Built-in defaults
//
// MATERIAL is also accepted for run.material, matching the variable the
// acquisition scripts already export.
//
// # Default Values
//
//   - Config file: ~/.config/stm2mon/config.toml
//   - Sink: influx at http://localhost:8086, database stm2, 5s timeout
//   - SQLite sink: ~/.local/share/stm2mon/points.db
//   - Poll interval 200ms, stop timeout 1s, alert fraction 0.8
//   - Log level info, text format
//
// A missing config file is not an error.
//
// # TOML Format
//
//	[sink]
//	kind = "influx"
//
//	[influx]
//	url = "http://localhost:8086"
//	database = "stm2"
//
//	[ingest]
//	poll_interval = "200ms"
//	alert_fraction = 0.8
//
//	[run]
//	file = "~/stm2/run42.log"
//	material = "Al"
//	target = 1200
//
// The run section pre-fills the operator form and drives headless mode.
// Its numbers are kept as text and parsed by ingest.RunInput, so a bad
// density in the file surfaces as the same error the form shows.
//
// # Path Expansion
//
// Tilde paths are expanded and made absolute for the config file,
// sink.sqlite_path, log.file and run.file.
//
// # Error Handling
//
// Validation failures wrap ingest.ErrInvalidConfig so callers can report
// them with ingest.Category. Unreadable or malformed files are returned
// as "read config" errors.
package config
