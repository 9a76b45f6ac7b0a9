package postgresql

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (d *Dialect) GetPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// Connect establishes a connection to PostgreSQL
func (d *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

// GetEnsureStatement returns the idempotent tracking table DDL
func (d *Dialect) GetEnsureStatement(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	revision_id TEXT PRIMARY KEY NOT NULL,
	down_revision_id TEXT,
	message TEXT,
	tags TEXT,
	author TEXT,
	created_at TIMESTAMPTZ DEFAULT now()
)`, table)
}

// GetDropStatement returns the idempotent tracking table drop DDL
func (d *Dialect) GetDropStatement(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

// GetDriverName returns the driver name for logging
func (d *Dialect) GetDriverName() string {
	return "postgresql"
}
