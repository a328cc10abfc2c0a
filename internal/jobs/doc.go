// Package jobs persists pipeline jobs and exposes the record store used by the
// orchestrator, the ingress gateway and the query surface.
//
// The Store is a thin database/sql layer over the shared database package.
// Every method touches a single row; there are no multi-row transactions.
// Terminal jobs (completed, failed) refuse further updates so a reclaimed or
// failed job can never be revived by a straggling run. Heartbeats and the
// stale-job sweep live in store_maintenance.go.
package jobs
