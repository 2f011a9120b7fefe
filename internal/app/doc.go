// Package app provides the orchestration layer for stm2mon.
//
// # Overview
//
// This package wires configuration, logging, the time-series sink, the
// ingestion controller, the state store and a front-end together. It is
// the composition root where every dependency is created and connected.
//
// # Architecture
//
//  1. Load configuration (file, STM2_* environment, flags)
//  2. Build the slog logger (to a file while the TUI owns the terminal)
//  3. Open the sink: InfluxDB 1.x over HTTP, or a local SQLite file
//  4. Create the Prometheus registry and the ingestion controller
//  5. Start the event pump that folds controller events into state.Store
//  6. Optionally serve /metrics
//  7. Run the TUI, or headless until SIGINT/SIGTERM
//
// # Components
//
//   - app.go: Run and the composition of the pieces above
//   - pump.go: Background goroutine draining controller events into the store
//   - headless.go: One session driven by the run section of the config
//   - logging.go: slog handler selection
//   - sink.go: Sink selection and the InfluxDB reachability check
//   - metrics.go: Prometheus HTTP endpoint
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()           Read settings
//	       ├─────> openSink()              Influx or SQLite writer
//	       ├─────> ingest.NewController()  Session supervisor
//	       ├─────> StartPump()             Events → state.Store
//	       └─────> ui.Run() / RunHeadless() (blocks)
//
//	Session goroutine ──Event──> pump ──Apply──> Store <──Snapshot── UI tick
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid configuration
//   - Log file or sink that cannot be opened
//   - Headless start failures and headless session failures
//
// Recoverable errors (logged, shown in the UI):
//   - Start failures from the TUI form
//   - Individual sink write failures
//   - InfluxDB unreachable at launch
//
// On exit a running session is stopped before the sink is closed.
package app
