// Command mediaflow runs and administers the mediaflow media job daemon.
//
// Local commands (serve, config, check, users, jobs export) read the
// configuration and database directly. Remote commands (jobs list|show|
// delete|submit, status) talk to a running daemon over its HTTP API using a
// bearer token from --token or MEDIAFLOW_TOKEN.
package main
