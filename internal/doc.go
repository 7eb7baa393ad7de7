// Package internal contains the core implementation packages for stitch.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the stitch CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Include expansion, variable substitution, link relativizing,
//     the build orchestrator, its report, and the rebuild scheduler
//   - config: Configuration loading and validation with viper
//   - errors: Typed build errors and CLI error suggestions
//   - filestore: afero-backed file access with write retry and tree copy
//   - linkcheck: Broken relative link detection over compiled pages
//   - logging: slog-backed structured logging
//   - metrics: Build metrics for Prometheus
//   - server: Development file server with live reload
//   - validation: Path containment and configuration input checks
//   - version: Build identity
//   - watcher: File system monitoring with debouncing
//
// # Inter-Package Communication
//
//   - Watcher batches source changes and calls Scheduler.Trigger
//   - Scheduler serializes Orchestrator.Build and notifies callbacks
//   - Server receives a reload callback and serves the last report
//
// # Security Considerations
//
//   - Server resolves every request path inside the output root
//   - Live reload sockets accept only local and same-host origins
//   - Config refuses an output directory that contains the source tree
package internal
