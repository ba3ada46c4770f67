// Package internal contains the packages behind the glit CLI. The engine
// itself lives in pkg/lit, pkg/dom and pkg/trusted and never imports them.
//
// # Package Organization
//
//   - config: Viper-backed settings with validation
//   - errors: GlitError, error codes and the step failure collector
//   - logging: slog-based structured logger
//   - scenario: YAML scenario files and the runner that plays them
//   - watcher: fsnotify file watching with debouncing
//   - inspector: HTTP server, websocket frame stream and Prometheus metrics
//   - middleware: HTTP middleware for the inspector
//   - version: build metadata
//   - testutils: helpers shared by tests
//
// # Data Flow
//
// A command loads a scenario, the runner renders each step with pkg/lit
// into a pkg/dom document and emits a Frame. Frames are printed by the
// CLI, or recorded as metrics and pushed to inspector clients. The watcher
// re-runs the scenario when its file changes.
package internal
