// Package preflight provides readiness checks for external services
// and filesystem paths that mediaflow depends on.
//
// These checks run in two contexts:
//   - The daemon reports CheckSystemDeps through GET /api/status.
//   - The CLI "mediaflow check" command runs RunAll and prints every result.
//
// Each check is gated by its config section; disabled transports are skipped.
package preflight
