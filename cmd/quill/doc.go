// Command quill manages transcription backups and live editing sessions.
//
// Every subcommand opens the same services the daemon uses, so the CLI works
// with or without quilld running. Snapshots are read as JSON from --file or
// stdin; --json switches output from tables and rendered documents to JSON.
package main
