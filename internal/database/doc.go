// Package database opens the relational store shared by the job and user
// stores.
//
// SQLite (modernc, pure Go) is the embedded default; PostgreSQL is reached
// through pgx's database/sql driver. Queries are written with `?` placeholders
// and rebound for the active dialect. Writes retry briefly when SQLite reports
// a busy database. The schema lives in schema.sql and is guarded by a single
// schema_version row; bump schemaVersion when the tables change.
package database
