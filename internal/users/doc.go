// Package users persists tenant principals and resolves API tokens to them.
//
// Tokens are never stored; only their SHA-256 digest is kept so a leaked
// database does not leak credentials. Users can be provisioned from a YAML
// seed file at daemon start or through the CLI.
package users
