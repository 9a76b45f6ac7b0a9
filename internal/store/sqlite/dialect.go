package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const busyTimeoutMS = 5000

// timeLayout is fixed-width UTC so that lexicographic comparison of stored
// values matches chronological order; RFC3339Nano trims trailing zeros and
// would break ORDER BY / >= on the TEXT column.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns SQLite-style placeholders (?)
func (d *Dialect) GetPlaceholder() string {
	return "?"
}

// ConvertTimeToStorage converts a timestamp to its TEXT storage form
func (d *Dialect) ConvertTimeToStorage(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ConvertTimeFromStorage parses the TEXT storage form back into a timestamp.
// Rows written by the DDL default carry millisecond precision; engine-written
// rows carry the full layout.
func (d *Dialect) ConvertTimeFromStorage(v string) (time.Time, error) {
	layouts := []string{
		timeLayout,
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at value: %q", v)
}

// Connect establishes a connection to SQLite
func (d *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// SQLite allows only one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// FileDSN converts a plain path into the file: form with the standard
// pragmas; descriptors that already are file:/memory DSNs pass through.
func (d *Dialect) FileDSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_fk=1", path, busyTimeoutMS)
}

// GetEnsureStatement returns the idempotent tracking table DDL. The default
// uses strftime with %f for sub-second precision; plain CURRENT_TIMESTAMP
// only carries whole seconds.
func (d *Dialect) GetEnsureStatement(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	revision_id TEXT PRIMARY KEY NOT NULL,
	down_revision_id TEXT,
	message TEXT,
	tags TEXT,
	author TEXT,
	created_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%d %%H:%%M:%%f', 'now'))
)`, table)
}

// GetDropStatement returns the idempotent tracking table drop DDL
func (d *Dialect) GetDropStatement(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

// GetDriverName returns the driver name for logging
func (d *Dialect) GetDriverName() string {
	return "sqlite"
}
