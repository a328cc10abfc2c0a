package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"mediaflow/internal/config"
)

type codedError int

func (e codedError) Error() string { return fmt.Sprintf("sqlite code %d", int(e)) }
func (e codedError) Code() int     { return int(e) }

func TestConflictClassification(t *testing.T) {
	cases := []struct {
		name   string
		driver string
		err    error
		want   bool
	}{
		{"nil", config.DriverSQLite, nil, false},
		{"sqlite busy code", config.DriverSQLite, codedError(5), true},
		{"sqlite extended busy", config.DriverSQLite, codedError(5 | 2<<8), true},
		{"sqlite constraint", config.DriverSQLite, codedError(19), false},
		{"sqlite message", config.DriverSQLite, errors.New("database is locked"), true},
		{"pg serialization", config.DriverPostgres, fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pg unique violation", config.DriverPostgres, &pgconn.PgError{Code: "23505"}, false},
		{"pg ignores sqlite text", config.DriverPostgres, errors.New("database is locked"), false},
	}
	for _, tc := range cases {
		if got := conflict(tc.driver, tc.err); got != tc.want {
			t.Errorf("%s: conflict = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryPolicyStopsAfterAttempts(t *testing.T) {
	policy := retryPolicy{attempts: 3, first: time.Millisecond, ceiling: 2 * time.Millisecond}
	calls := 0
	err := policy.run(context.Background(), config.DriverSQLite, func() error {
		calls++
		return codedError(5)
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 attempts ending in error, got %d calls err=%v", calls, err)
	}

	calls = 0
	err = policy.run(context.Background(), config.DriverSQLite, func() error {
		calls++
		if calls < 2 {
			return codedError(5)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got %d calls err=%v", calls, err)
	}
}

func TestRetryPolicyDoesNotRepeatOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := writeRetry.run(context.Background(), config.DriverSQLite, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call returning boom, got %d calls err=%v", calls, err)
	}
}
