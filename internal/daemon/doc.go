// Package daemon coordinates the long-running mediaflow process.
//
// It wires the workflow manager and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances against the same data
// directory. The API server authenticates bearer tokens against the user
// store, maps service errors to status codes, and streams organization events
// from the in-process hub over SSE or long poll.
//
// Keep orchestration here: domain rules live in access, ingress, api and
// workflow while the daemon focuses on startup, shutdown and transport.
package daemon
