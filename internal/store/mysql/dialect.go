package mysql

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// Dialect implements SQL dialect for MySQL
type Dialect struct{}

// NewDialect creates a new MySQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns MySQL-style placeholders (?)
func (d *Dialect) GetPlaceholder() string {
	return "?"
}

// DriverConfig converts validated connection parameters into the driver's
// native configuration.
func (d *Dialect) DriverConfig(params map[string]any) *mysqldriver.Config {
	cfg := mysqldriver.NewConfig()
	cfg.Net = "tcp"

	host, _ := params["host"].(string)
	port, _ := params["port"].(int)
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))

	if user, ok := params["user"].(string); ok {
		cfg.User = user
	}
	if pass, ok := params["password"].(string); ok {
		cfg.Passwd = pass
	}
	if db, ok := params["database"].(string); ok {
		cfg.DBName = db
	}

	// created_at round-trips as time.Time instead of []byte
	cfg.ParseTime = true

	if autocommit, ok := params["autocommit"].(bool); ok && !autocommit {
		cfg.Params = map[string]string{"autocommit": "0"}
	}
	if disabled, ok := params["ssl_disabled"].(bool); ok && disabled {
		cfg.TLSConfig = "false"
	}
	// use_pure selects a client implementation in other connectors; this
	// driver has a single implementation, so the parameter is accepted and
	// ignored.

	return cfg
}

// Connect establishes a connection to MySQL
func (d *Dialect) Connect(cfg *mysqldriver.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}
	return db, nil
}

// GetEnsureStatement returns the idempotent tracking table DDL
func (d *Dialect) GetEnsureStatement(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	revision_id VARCHAR(255) PRIMARY KEY NOT NULL,
	down_revision_id VARCHAR(255),
	message TEXT,
	tags TEXT,
	author VARCHAR(255),
	created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6)
)`, table)
}

// GetDropStatement returns the idempotent tracking table drop DDL
func (d *Dialect) GetDropStatement(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

// GetDriverName returns the driver name for logging
func (d *Dialect) GetDriverName() string {
	return "mysql"
}
