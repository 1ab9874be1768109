// Package services defines shared utilities consumed by the version store,
// session manager, and API layers.
//
// Key responsibilities:
//   - Context helpers that stamp user IDs, transcription IDs, operation names,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (not found, access denied, validation, storage, consistency)
//     with errors.Is and map them to HTTP statuses.
package services
