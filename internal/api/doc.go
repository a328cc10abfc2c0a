// Package api holds the tenant-scoped query surface and the wire-format
// types shared by the HTTP daemon and the CLI.
//
// # Services
//
// JobService: Get, List, Delete and StreamURL for jobs, each evaluated by the
// access guard before the store is touched. Cross-organization requests are
// answered exactly like missing jobs.
//
// UserService: admin-only listing and role changes within one organization.
//
// # Converters
//
// FromJob: jobs.Job -> Video. FromUser: users.User -> User.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Storage internals (local paths) never leave the daemon;
// playback goes through the stream endpoint.
package api
