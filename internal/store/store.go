// Package store selects and constructs the revision-tracking backend. Each
// backend lives in its own sub-package and implements the Driver interface
// against its native SQL dialect.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/revtrail/revtrail/internal/migration"
	"github.com/revtrail/revtrail/internal/store/mysql"
	"github.com/revtrail/revtrail/internal/store/postgresql"
	"github.com/revtrail/revtrail/internal/store/sqlite"
)

// Driver name constants accepted by New.
const (
	DriverMySQL      = "mysql"
	DriverPostgresql = "postgresql"
	DriverSqlite     = "sqlite"
)

// Driver is the revision bookkeeping engine. Every operation opens its own
// connection, performs its statements, and releases the connection before
// returning. The tracking table is shared state with no locking discipline;
// serializing concurrent runners is the caller's responsibility.
type Driver interface {
	// Connect opens a live connection from the configured descriptor. The
	// caller must release the returned handle on every exit path.
	Connect() (*sql.DB, error)
	// CreateTrackingTable issues idempotent DDL for the bookkeeping table.
	CreateTrackingTable() error
	// DropTrackingTable removes the bookkeeping table if it exists.
	DropTrackingTable() error
	// MigrateUp executes the revision's up SQL (when present) and inserts
	// its bookkeeping row. Returns the number of bookkeeping rows affected.
	MigrateUp(rev *migration.Revision) (int64, error)
	// MigrateDown executes the revision's down SQL (when present) and
	// deletes its bookkeeping row. Returns the number of bookkeeping rows
	// affected; 0 means the revision was never applied.
	MigrateDown(rev *migration.Revision) (int64, error)
	// GetHeadRevision returns the most recently inserted bookkeeping row,
	// or nil when the table is empty.
	GetHeadRevision() (*migration.Revision, error)
	// ListMigrations returns bookkeeping rows matching every supplied
	// filter, most recent first.
	ListMigrations(filter migration.ListFilter) ([]migration.Revision, error)
}

// New constructs the Driver for the named backend.
func New(driver string, cfg *migration.Config) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMySQL:
		return mysql.New(cfg), nil
	case DriverPostgresql, "postgres", "pg":
		return postgresql.New(cfg), nil
	case DriverSqlite, "sqlite3":
		return sqlite.New(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
}
