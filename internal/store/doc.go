// Package store persists projects, transcriptions, media files, and
// transcription backup records in SQLite.
//
// The store uses the pure-Go modernc.org/sqlite driver in WAL mode with a
// busy timeout, and retries statements that still hit SQLITE_BUSY with a short
// exponential backoff. Lookups return (nil, nil) when the row does not exist so
// callers decide whether absence is an error. Timestamps are stored as
// fixed-width UTC strings so range filters compare lexically.
//
// Schema changes bump schemaVersion; an existing database with a different
// version is rejected with ErrSchemaMismatch rather than migrated in place.
package store
