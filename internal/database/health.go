package database

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Health summarizes database reachability for status and preflight output.
type Health struct {
	Driver        string `json:"driver"`
	Path          string `json:"path,omitempty"`
	Reachable     bool   `json:"reachable"`
	SchemaVersion int    `json:"schemaVersion"`
	Error         string `json:"error,omitempty"`
}

// CheckHealth pings the database and reads the schema version.
func (d *DB) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Driver: d.driver, Path: d.path}
	if d.path != "" {
		info, err := os.Stat(d.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				health.Error = "database file missing"
				return health, fmt.Errorf("stat database: %w", err)
			}
			return health, fmt.Errorf("stat database: %w", err)
		}
		if info.IsDir() {
			return health, fmt.Errorf("database path %q is a directory", d.path)
		}
	}
	if err := d.Ping(ctx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.Reachable = true
	if err := d.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	return health, nil
}
