// Package config loads, normalizes, and validates Quill configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// QUILL_API_TOKEN and QUILL_DATA_DIR. The Config type centralizes every knob
// the daemon and CLI need so data/state directories, retention caps, and the
// API binding are discovered in one pass.
package config
