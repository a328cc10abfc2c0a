package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"mediaflow/internal/config"
)

// DB wraps a database/sql handle with dialect-aware helpers.
type DB struct {
	db     *sql.DB
	driver string
	path   string
}

// Open connects to the database selected by the configuration and ensures the
// schema exists.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("database: config is nil")
	}
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return OpenPostgres(cfg.Database.DSN)
	case config.DriverSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(cfg.DatabasePath())
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Database.Driver)
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database: sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return finishOpen(&DB{db: db, driver: config.DriverSQLite, path: path})
}

// OpenPostgres connects to PostgreSQL through pgx.
func OpenPostgres(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database: postgres dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return finishOpen(&DB{db: db, driver: config.DriverPostgres})
}

func finishOpen(d *DB) (*DB, error) {
	if err := d.initSchema(context.Background()); err != nil {
		_ = d.db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Driver reports the active dialect (sqlite or postgres).
func (d *DB) Driver() string { return d.driver }

// Path returns the SQLite file path, empty for PostgreSQL.
func (d *DB) Path() string { return d.path }

// Ping verifies the connection within a short deadline.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.db == nil {
		return errors.New("database connection unavailable")
	}
	ctx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()
	return d.db.PingContext(ctx)
}

// ExecContext rebinds the query and repeats it on a lock conflict.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = Rebind(d.driver, query)
	var (
		res     sql.Result
		execErr error
	)
	if err := writeRetry.run(ctx, d.driver, func() error {
		res, execErr = d.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// QueryContext rebinds the query for the active dialect.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ensureContext(ctx), Rebind(d.driver, query), args...)
}

// QueryRowContext rebinds the query for the active dialect.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ensureContext(ctx), Rebind(d.driver, query), args...)
}

// Rebind rewrites `?` placeholders into `$n` form for PostgreSQL. Quoted
// literals are left untouched.
func Rebind(driver, query string) string {
	if driver != config.DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
