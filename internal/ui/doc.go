// Package ui provides the Bubble Tea operator console for stm2mon.
//
// # Overview
//
// The console is a single screen: a run form, a live run panel and a
// command bar. The form fields are target, material, density, z-ratio,
// log file and run ID, in that order.
//
// # Data Flow
//
// The model never reads controller state directly. A tick every 250ms asks
// state.Store for a Snapshot, which the event pump keeps current:
//
//	tickMsg ──> fetchSnapshotCmd ──> snapshotMsg ──> applySnapshot
//
// Start and Stop run as tea.Cmds because Start writes the settings point
// and may wait on the network. Their results come back as startedMsg and
// stoppedMsg and drive the status line:
//
//   - "Waiting…" before the first start
//   - "Logging started…" after a successful start
//   - "Stopped" after Stop
//   - "Start failed (<category>): <error>" using ingest.Category
//
// A session that ends on its own (log file deleted, replaced or
// unreadable) is picked up from the snapshot and shown the same way.
//
// # Material Table
//
// Typing a known material name replaces density and z-ratio with the table
// values. Both fields stay editable afterwards.
//
// # Preferences
//
// The theme (ctrl+t) and the form as it was at the last successful start are
// saved to prefs.toml and restored on the next launch. Values from the
// config file or flags win over the saved form.
package ui
