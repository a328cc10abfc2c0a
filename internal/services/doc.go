// Package services defines shared utilities consumed by the pipeline, the
// HTTP API and the external collaborator adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, organizations and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and the mapping from
//     those markers to HTTP status codes.
package services
