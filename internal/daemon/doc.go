// Package daemon coordinates the long-running Quill process.
//
// It owns the single-instance flock, serves the HTTP API over the version and
// session services opened by bootstrap, and reports runtime status. Handlers
// stay thin: they decode requests, call the services, and map service errors
// to status codes through services.HTTPStatus.
package daemon
