package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/revtrail/revtrail/internal/common"
	"github.com/revtrail/revtrail/internal/migration"
)

const revisionColumns = "revision_id, down_revision_id, message, tags, author, created_at"

// Store implements revision bookkeeping on SQLite. The descriptor is a file
// path or a file: URI; timestamps are stored as fixed-width UTC TEXT so that
// string comparison matches chronological order. Every operation opens its
// own connection and releases it before returning.
type Store struct {
	cfg     *migration.Config
	dialect *Dialect
}

// New creates a SQLite store for the given engine config
func New(cfg *migration.Config) *Store {
	return &Store{
		cfg:     cfg,
		dialect: NewDialect(),
	}
}

// Connect opens a live connection; failures are wrapped into a ConnectError
// carrying the original descriptor.
func (s *Store) Connect() (*sql.DB, error) {
	logger := common.GetLogger().WithStore(s.dialect.GetDriverName())

	if s.cfg.DSN == "" {
		err := errors.New("sqlite store requires a database path")
		logger.Error("connection attempt failed", "error", err)
		return nil, &migration.ConnectError{DSN: s.cfg.DSN, Err: err}
	}

	db, err := s.dialect.Connect(s.dialect.FileDSN(s.cfg.DSN))
	if err != nil {
		logger.Error("connection attempt failed", "error", err, "dsn", s.cfg.DSN)
		return nil, &migration.ConnectError{DSN: s.cfg.DSN, Err: err}
	}

	logger.Debug("SQLite database connection established")
	return db, nil
}

// CreateTrackingTable issues idempotent DDL for the bookkeeping table.
func (s *Store) CreateTrackingTable() error {
	db, err := s.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger := common.GetLogger().WithStore(s.dialect.GetDriverName())
	logger.Debug("ensuring tracking table", "table", s.cfg.Table())
	if _, err := db.Exec(s.dialect.GetEnsureStatement(s.cfg.Table())); err != nil {
		logger.Error("failed to create tracking table", "error", err, "table", s.cfg.Table())
		return fmt.Errorf("failed to create tracking table %s: %w", s.cfg.Table(), err)
	}
	return nil
}

// DropTrackingTable removes the bookkeeping table if it exists.
func (s *Store) DropTrackingTable() error {
	db, err := s.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger := common.GetLogger().WithStore(s.dialect.GetDriverName())
	logger.Debug("dropping tracking table", "table", s.cfg.Table())
	if _, err := db.Exec(s.dialect.GetDropStatement(s.cfg.Table())); err != nil {
		logger.Error("failed to drop tracking table", "error", err, "table", s.cfg.Table())
		return fmt.Errorf("failed to drop tracking table %s: %w", s.cfg.Table(), err)
	}
	return nil
}

// MigrateUp executes the revision's up SQL (when present) and inserts its
// bookkeeping row. The two statements are not one transaction.
func (s *Store) MigrateUp(rev *migration.Revision) (int64, error) {
	db, err := s.Connect()
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	logger := common.GetLogger().WithStore(s.dialect.GetDriverName()).WithRevision(rev.RevisionID)

	if rev.UpSQL != "" {
		logger.Debug("executing up sql")
		if err := execDrained(db, rev.UpSQL); err != nil {
			logger.Error("up sql failed", "error", err)
			return 0, err
		}
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)", s.cfg.Table(), revisionColumns)
	res, err := db.Exec(q,
		rev.RevisionID,
		rev.DownRevisionID,
		rev.Message,
		migration.EncodeTags(rev.Tags),
		rev.Author,
		s.dialect.ConvertTimeToStorage(time.Now()),
	)
	if err != nil {
		logger.Error("failed to record applied revision", "error", err)
		return 0, fmt.Errorf("failed to record revision %s: %w", rev.RevisionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	logger.Info("revision applied", "rows", n)
	return n, nil
}

// MigrateDown executes the revision's down SQL (when present) and deletes its
// bookkeeping row.
func (s *Store) MigrateDown(rev *migration.Revision) (int64, error) {
	db, err := s.Connect()
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	logger := common.GetLogger().WithStore(s.dialect.GetDriverName()).WithRevision(rev.RevisionID)

	if rev.DownSQL != "" {
		logger.Debug("executing down sql")
		if err := execDrained(db, rev.DownSQL); err != nil {
			logger.Error("down sql failed", "error", err)
			return 0, err
		}
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE revision_id = ?", s.cfg.Table())
	res, err := db.Exec(q, rev.RevisionID)
	if err != nil {
		logger.Error("failed to delete revision record", "error", err)
		return 0, fmt.Errorf("failed to delete revision %s: %w", rev.RevisionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	logger.Info("revision reversed", "rows", n)
	return n, nil
}

// GetHeadRevision returns the bookkeeping row with the maximum created_at, or
// nil when the table is empty. Head is insertion-time order, not the tip of
// the down_revision_id chain.
func (s *Store) GetHeadRevision() (*migration.Revision, error) {
	db, err := s.Connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT 1", revisionColumns, s.cfg.Table())
	rev, err := s.scanRevision(db.QueryRow(q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query head revision: %w", err)
	}
	return rev, nil
}

// ListMigrations returns bookkeeping rows matching every supplied filter,
// ordered by created_at descending.
func (s *Store) ListMigrations(filter migration.ListFilter) ([]migration.Revision, error) {
	db, err := s.Connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	q, args := buildListQuery(s.dialect, s.cfg.Table(), filter)
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []migration.Revision
	for rows.Next() {
		rev, err := s.scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revision row: %w", err)
		}
		revisions = append(revisions, *rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revision rows: %w", err)
	}
	return revisions, nil
}

// execDrained runs a revision's raw SQL through Query and drains any result
// rows so the connection stays usable for the next statement.
func execDrained(db *sql.DB, stmt string) error {
	rows, err := db.Query(stmt)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	return rows.Err()
}

// buildListQuery assembles the filtered history query. Tag matching is any-of
// across the requested tags, each tested as a whole element of the stored
// delimited string; the min timestamp filter compares the fixed-width TEXT
// encoding.
func buildListQuery(dialect *Dialect, table string, filter migration.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if filter.Author != nil {
		conds = append(conds, "author = ?")
		args = append(args, *filter.Author)
	}
	if len(filter.Tags) > 0 {
		d := migration.TagDelimiter
		tagConds := make([]string, 0, len(filter.Tags))
		for _, tag := range filter.Tags {
			tagConds = append(tagConds, "(tags IS NOT NULL AND (tags = ? OR tags LIKE ? OR tags LIKE ? OR tags LIKE ?))")
			args = append(args, tag, tag+d+"%", "%"+d+tag, "%"+d+tag+d+"%")
		}
		conds = append(conds, "("+strings.Join(tagConds, " OR ")+")")
	}
	if filter.MinCreatedAt != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, dialect.ConvertTimeToStorage(*filter.MinCreatedAt))
	}

	q := fmt.Sprintf("SELECT %s FROM %s", revisionColumns, table)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	return q, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRevision(row rowScanner) (*migration.Revision, error) {
	var (
		rev       migration.Revision
		downRev   sql.NullString
		message   sql.NullString
		tags      sql.NullString
		author    sql.NullString
		createdAt sql.NullString
	)
	if err := row.Scan(&rev.RevisionID, &downRev, &message, &tags, &author, &createdAt); err != nil {
		return nil, err
	}

	if downRev.Valid {
		rev.DownRevisionID = &downRev.String
	}
	rev.Message = message.String
	if tags.Valid {
		rev.Tags = migration.DecodeTags(&tags.String)
	} else {
		rev.Tags = []string{}
	}
	if author.Valid {
		rev.Author = &author.String
	}
	if createdAt.Valid {
		t, err := s.dialect.ConvertTimeFromStorage(createdAt.String)
		if err != nil {
			return nil, err
		}
		rev.CreatedAt = t
	}
	return &rev, nil
}
