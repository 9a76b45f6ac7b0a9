package migration

// DefaultMigrationTable is the tracking table name used when the caller does
// not configure one.
const DefaultMigrationTable = "revtrail_migrations"

// Config describes how the engine reaches its backing database. It is owned by
// the caller and passed by reference into every engine operation.
type Config struct {
	// DSN is the backend connection descriptor. For the mysql driver it must
	// follow mysql://[user[:password]@]host:port[/database][?key=value&...].
	DSN string
	// MigrationDir is where migration files live. The engine itself never
	// reads it; it is carried for the file-authoring layer.
	MigrationDir string
	// MigrationTable is the bookkeeping table name. Empty selects
	// DefaultMigrationTable.
	MigrationTable string
}

// Table returns the effective tracking table name.
func (c *Config) Table() string {
	if c.MigrationTable == "" {
		return DefaultMigrationTable
	}
	return c.MigrationTable
}
