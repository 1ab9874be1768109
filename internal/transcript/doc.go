// Package transcript defines the structured snapshot of a transcription and
// the delimited plain-text document used to persist it.
//
// A document has four sections in fixed order: a header (project, title,
// date, version, media references), SPEAKERS, TRANSCRIPT, and METADATA.
// Render always writes every section and prefixes the output with a UTF-8
// byte-order mark so editors pick the right encoding for Hebrew and other
// non-Latin scripts.
//
// Parse is driven by one rule per section. Lines that do not match the
// transcript grammar become plain untagged blocks, blank lines become empty
// blocks, and the "(No content)" marker yields zero blocks, so a document never
// fails to parse.
//
// The codec is lossless for validated snapshots: Parse(Render(s)) returns the
// same blocks, speakers, and counts. Plain block text that would otherwise be
// read back as a tagged line is written with an empty ": " prefix. The only
// normalizations are flattening line breaks inside block text, trimming
// timestamps and speaker codes, and dropping byte-order marks.
package transcript
