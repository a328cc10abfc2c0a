package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"mediaflow/internal/config"
)

// retryPolicy bounds how often a write is repeated after a lock conflict.
type retryPolicy struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

var writeRetry = retryPolicy{attempts: 5, first: 10 * time.Millisecond, ceiling: 200 * time.Millisecond}

// SQLite reports a held write lock as SQLITE_BUSY (5) or SQLITE_LOCKED (6).
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// Postgres serialization_failure and deadlock_detected.
var retryablePGCodes = map[string]bool{"40001": true, "40P01": true}

// conflict reports whether err is a transient lock conflict for driver.
func conflict(driver string, err error) bool {
	if err == nil {
		return false
	}
	if driver == config.DriverPostgres {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && retryablePGCodes[pgErr.Code]
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		if code := coded.Code() & 0xff; code == sqliteBusy || code == sqliteLocked {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// run calls op until it succeeds, fails with a non-conflict error or the
// attempts are spent. The delay doubles up to the ceiling.
func (p retryPolicy) run(ctx context.Context, driver string, op func() error) error {
	wait := p.first
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || attempt >= p.attempts || !conflict(driver, err) {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, p.ceiling)
	}
}
