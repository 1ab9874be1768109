// Package versions keeps the append-only version history of transcriptions.
//
// Each version is an immutable rendered file plus a database record with a
// version number that is unique and strictly increasing per transcription.
// Versions are written in two phases: the rendered text is staged under a
// temp name, the record is inserted, and only then is the file renamed into
// place. A crash leaves either no record or a record whose file is still
// staged, never a visible file without a record.
//
// Number allocation runs under a per-transcription advisory lock, so
// concurrent writers for one transcription are serialized rather than
// racing on "latest + 1".
package versions
