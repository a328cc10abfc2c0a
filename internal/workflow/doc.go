// Package workflow drives submitted jobs through the processing pipeline.
//
// Runner executes one job end to end: metadata probe, sensitivity
// classification and finalize, persisting a checkpoint before every progress
// event it publishes. Manager owns a bounded worker pool fed by a buffered
// queue, keeps a registry of in-flight and recently finished runs, refreshes
// job heartbeats while a run is active and periodically reclaims jobs whose
// run disappeared (for example after a daemon restart).
//
// A failed run is terminal. Nothing in this package retries or resumes work.
package workflow
