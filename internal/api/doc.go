// Package api defines wire-format types and converters for the HTTP API and
// the CLI's JSON output. It translates transcript snapshots, version records,
// and session state into transport-friendly DTOs so clients do not couple to
// internal types.
//
// # Key Types
//
// Snapshot: the transcription payload clients send and receive. Blocks carry
// an optional HH:MM:SS timestamp and speaker code; counts are derived by the
// server and ignored on input.
//
// Backup: one version record with denormalized counts.
//
// SessionSlot/TrailFile: live session listings.
//
// DaemonStatus: runtime information and row counts.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. A snapshot version of 0 is the
// live working copy and is exposed as "CURRENT".
package api
