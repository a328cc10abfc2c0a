// Package testsupport holds shared helpers for package tests: temp-dir
// configurations, database-backed stores and fixture files.
package testsupport
