// Package logging assembles structured slog loggers and formatting helpers used
// across Quill services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so service code can tag log lines
// with user IDs, transcription IDs, operations, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, plus retention pruning for the daemon's own log files.
package logging
