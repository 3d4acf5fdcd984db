// Package logging assembles structured slog loggers and formatting helpers used
// across packfetch.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so task code can tag log lines
// with task IDs, task names, and correlation IDs. A no-op logger is provided
// for tests and for callers that pass a nil logger.
package logging
