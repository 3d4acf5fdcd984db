// Package services defines shared utilities consumed by the tasks and their
// network collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, task names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (validation, transport, filesystem, aborted) without string
//     matching.
//
// Use these helpers when wiring new task logic so operational behaviour (error
// handling, observability) stays uniform across the batch pipeline.
package services
