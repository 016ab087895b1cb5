package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions is the mode for the database directory on device flash.
	dirPermissions = 0750

	// filePermissions restricts the database file to the firmware user.
	// It holds credentials and access history.
	filePermissions = 0600

	// msPerSecond converts the configured busy timeout to milliseconds
	// for the driver's _busy_timeout pragma.
	msPerSecond = 1000

	// openTimeout bounds the connectivity check during Open.
	openTimeout = 5 * time.Second

	// connMaxIdleTime is how long an idle connection is kept open.
	connMaxIdleTime = 30 * time.Minute
)

// DB is the terminal's embedded store: a single SQLite file holding
// users, credentials, permissions, and access records. It embeds
// *sql.DB, so the standard query methods are available directly.
type DB struct {
	*sql.DB
	path string
}

// Config maps to the database section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The parent directory is created if missing.
	Path string

	// WALMode enables Write-Ahead Logging so the tracking loop can
	// read while a management command writes.
	WALMode bool

	// BusyTimeout is the maximum wait for a database lock, in seconds.
	BusyTimeout int
}

// Open opens (creating if necessary) the terminal's database file and
// verifies connectivity.
//
// Foreign keys are always enabled: the schema relies on ON DELETE
// CASCADE from users to credentials, permissions, and access records.
// The pool is pinned to a single connection because SQLite allows one
// writer and every caller in this process shares it.
//
// Returns the connected wrapper, or an error if the directory cannot
// be created or the file cannot be opened.
func Open(cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		DB:   sqlDB,
		path: cfg.Path,
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// First boot creates the file during the ping above; tighten it now.
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may appear on first write

	return db, nil
}

// Close closes the underlying connection. Safe to call on an already
// closed wrapper.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the store answers queries. Used by the boot
// health check alongside the broker and telemetry probes.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
