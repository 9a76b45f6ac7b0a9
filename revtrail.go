// Package revtrail is the revision-tracking engine of a database
// schema-migration tool. Given a connection descriptor it maintains a
// bookkeeping table recording which schema revisions have been applied, and
// exposes operations to apply, reverse, and query that history.
package revtrail

import (
	"github.com/revtrail/revtrail/internal/common"
	"github.com/revtrail/revtrail/internal/migration"
	"github.com/revtrail/revtrail/internal/store"
)

// Re-export commonly used types for public API

// Config describes how the engine reaches its backing database.
type Config = migration.Config

// Revision is one schema-migration unit.
type Revision = migration.Revision

// ListFilter narrows ListMigrations results.
type ListFilter = migration.ListFilter

// FormatError reports a malformed or out-of-range descriptor/parameter.
type FormatError = migration.FormatError

// ConnectError reports a failed connection attempt, wrapping its cause and
// carrying the original descriptor.
type ConnectError = migration.ConnectError

// Driver is the revision bookkeeping engine interface.
type Driver = store.Driver

// Driver names accepted by New.
const (
	DriverMySQL      = store.DriverMySQL
	DriverPostgresql = store.DriverPostgresql
	DriverSqlite     = store.DriverSqlite
)

// DefaultMigrationTable is the tracking table name used when Config leaves it
// empty.
const DefaultMigrationTable = migration.DefaultMigrationTable

// TagDelimiter joins a revision's tags in the tracking table. Tag values must
// not contain it.
const TagDelimiter = migration.TagDelimiter

// New constructs the bookkeeping driver for the named backend.
func New(driver string, cfg *Config) (Driver, error) {
	return store.New(driver, cfg)
}

// Logger is the structured logger used across the engine.
type Logger = common.Logger

// SetDefaultLogger replaces the process-wide logger used by the engine.
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }

// NewLogger creates a text logger at the given level ("debug", "info",
// "warn", "error").
func NewLogger(level string) *Logger {
	return common.NewLogger(common.ParseLogLevel(level))
}

// NewJSONLogger creates a JSON logger at the given level.
func NewJSONLogger(level string) *Logger {
	return common.NewJSONLogger(common.ParseLogLevel(level))
}
