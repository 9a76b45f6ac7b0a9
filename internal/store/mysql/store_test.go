package mysql

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/revtrail/revtrail/internal/migration"
)

const testTable = "revtrail_migrations"

func strPtr(s string) *string { return &s }

func TestCreateTrackingTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	dialect := NewDialect()
	mock.ExpectExec(dialect.GetEnsureStatement(testTable)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := createTrackingTable(db, dialect, testTable); err != nil {
		t.Fatalf("createTrackingTable: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDropTrackingTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	dialect := NewDialect()
	mock.ExpectExec("DROP TABLE IF EXISTS " + testTable).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := dropTrackingTable(db, dialect, testTable); err != nil {
		t.Fatalf("dropTrackingTable: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)", testTable, revisionColumns)
}

func TestMigrateUp_WithUpSQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	rev := &migration.Revision{
		RevisionID:     "rev-2",
		DownRevisionID: strPtr("rev-1"),
		Message:        "add widgets",
		Tags:           []string{"core", "schema"},
		Author:         strPtr("alice"),
		UpSQL:          "CREATE TABLE widgets (id INT)",
	}

	// the up statement runs against the target schema first
	mock.ExpectQuery(rev.UpSQL).WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectExec(insertSQL()).
		WithArgs("rev-2", "rev-1", "add widgets", "core,schema", "alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := migrateUp(db, NewDialect(), testTable, rev)
	if err != nil {
		t.Fatalf("migrateUp: %v", err)
	}
	if n != 1 {
		t.Errorf("migrateUp rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateUp_BookkeepingOnly(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	rev := &migration.Revision{RevisionID: "rev-1"}

	// no up SQL: only the bookkeeping insert runs; absent tags and author are
	// stored as NULL, not empty strings
	mock.ExpectExec(insertSQL()).
		WithArgs("rev-1", nil, "", nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := migrateUp(db, NewDialect(), testTable, rev)
	if err != nil {
		t.Fatalf("migrateUp: %v", err)
	}
	if n != 1 {
		t.Errorf("migrateUp rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateUp_DrainsReturnedRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	rev := &migration.Revision{
		RevisionID: "rev-3",
		UpSQL:      "SELECT id FROM widgets",
	}

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery(rev.UpSQL).WillReturnRows(rows)
	mock.ExpectExec(insertSQL()).
		WithArgs("rev-3", nil, "", nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := migrateUp(db, NewDialect(), testTable, rev); err != nil {
		t.Fatalf("migrateUp: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	rev := &migration.Revision{
		RevisionID: "rev-2",
		DownSQL:    "DROP TABLE widgets",
	}

	mock.ExpectQuery(rev.DownSQL).WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectExec("DELETE FROM "+testTable+" WHERE revision_id = ?").
		WithArgs("rev-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := migrateDown(db, NewDialect(), testTable, rev)
	if err != nil {
		t.Fatalf("migrateDown: %v", err)
	}
	if n != 1 {
		t.Errorf("migrateDown rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateDown_NeverApplied(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	rev := &migration.Revision{RevisionID: "rev-9"}

	mock.ExpectExec("DELETE FROM "+testTable+" WHERE revision_id = ?").
		WithArgs("rev-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := migrateDown(db, NewDialect(), testTable, rev)
	if err != nil {
		t.Fatalf("migrateDown: %v", err)
	}
	if n != 0 {
		t.Errorf("migrateDown rows = %d, want 0", n)
	}
}

func TestGetHeadRevision(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	created := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT 1", revisionColumns, testTable)
	rows := sqlmock.NewRows([]string{"revision_id", "down_revision_id", "message", "tags", "author", "created_at"}).
		AddRow("rev-2", "rev-1", "add widgets", "core,schema", "alice", created)
	mock.ExpectQuery(q).WillReturnRows(rows)

	rev, err := getHeadRevision(db, testTable)
	if err != nil {
		t.Fatalf("getHeadRevision: %v", err)
	}
	if rev == nil {
		t.Fatal("expected a head revision")
	}
	if rev.RevisionID != "rev-2" {
		t.Errorf("RevisionID = %q", rev.RevisionID)
	}
	if rev.DownRevisionID == nil || *rev.DownRevisionID != "rev-1" {
		t.Errorf("DownRevisionID = %v", rev.DownRevisionID)
	}
	if rev.Message != "add widgets" {
		t.Errorf("Message = %q", rev.Message)
	}
	if len(rev.Tags) != 2 || rev.Tags[0] != "core" || rev.Tags[1] != "schema" {
		t.Errorf("Tags = %v", rev.Tags)
	}
	if rev.Author == nil || *rev.Author != "alice" {
		t.Errorf("Author = %v", rev.Author)
	}
	if !rev.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", rev.CreatedAt, created)
	}
}

func TestGetHeadRevision_EmptyTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT 1", revisionColumns, testTable)
	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"revision_id", "down_revision_id", "message", "tags", "author", "created_at"}))

	rev, err := getHeadRevision(db, testTable)
	if err != nil {
		t.Fatalf("getHeadRevision on empty table: %v", err)
	}
	if rev != nil {
		t.Errorf("expected nil head, got %+v", rev)
	}
}

func TestListMigrations_DecodesRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	q, _ := buildListQuery(testTable, migration.ListFilter{})
	rows := sqlmock.NewRows([]string{"revision_id", "down_revision_id", "message", "tags", "author", "created_at"}).
		AddRow("rev-2", "rev-1", "second", "x,y", "alice", time.Now()).
		AddRow("rev-1", nil, nil, nil, nil, time.Now().Add(-time.Hour))
	mock.ExpectQuery(q).WillReturnRows(rows)

	revisions, err := listMigrations(db, testTable, migration.ListFilter{})
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("len = %d, want 2", len(revisions))
	}
	if revisions[0].RevisionID != "rev-2" || len(revisions[0].Tags) != 2 {
		t.Errorf("first row decoded wrong: %+v", revisions[0])
	}
	// NULL message decodes to empty string, NULL tags to an empty set
	if revisions[1].Message != "" || len(revisions[1].Tags) != 0 {
		t.Errorf("NULL columns decoded wrong: %+v", revisions[1])
	}
	if revisions[1].DownRevisionID != nil || revisions[1].Author != nil {
		t.Errorf("NULL optionals must stay nil: %+v", revisions[1])
	}
}

func TestBuildListQuery_NoFilters(t *testing.T) {
	q, args := buildListQuery(testTable, migration.ListFilter{})
	want := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC", revisionColumns, testTable)
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildListQuery_AuthorFilter(t *testing.T) {
	q, args := buildListQuery(testTable, migration.ListFilter{Author: strPtr("alice")})
	want := fmt.Sprintf("SELECT %s FROM %s WHERE author = ? ORDER BY created_at DESC", revisionColumns, testTable)
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 1 || args[0] != "alice" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildListQuery_TagFilter(t *testing.T) {
	q, args := buildListQuery(testTable, migration.ListFilter{Tags: []string{"x"}})
	wantCond := "((tags IS NOT NULL AND (tags = ? OR tags LIKE ? OR tags LIKE ? OR tags LIKE ?)))"
	want := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC", revisionColumns, testTable, wantCond)
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	wantArgs := []any{"x", "x,%", "%,x", "%,x,%"}
	if len(args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
	for i := range wantArgs {
		if args[i] != wantArgs[i] {
			t.Errorf("args[%d] = %v, want %v", i, args[i], wantArgs[i])
		}
	}
}

func TestBuildListQuery_AllFilters(t *testing.T) {
	minAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := buildListQuery(testTable, migration.ListFilter{
		Author:       strPtr("alice"),
		Tags:         []string{"x", "y"},
		MinCreatedAt: &minAt,
	})

	wantTag := "((tags IS NOT NULL AND (tags = ? OR tags LIKE ? OR tags LIKE ? OR tags LIKE ?))" +
		" OR (tags IS NOT NULL AND (tags = ? OR tags LIKE ? OR tags LIKE ? OR tags LIKE ?)))"
	want := fmt.Sprintf("SELECT %s FROM %s WHERE author = ? AND %s AND created_at >= ? ORDER BY created_at DESC",
		revisionColumns, testTable, wantTag)
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 10 {
		t.Fatalf("args = %d values, want 10", len(args))
	}
	if args[0] != "alice" || args[9] != minAt {
		t.Errorf("boundary args wrong: first=%v last=%v", args[0], args[9])
	}
}

func TestStore_Connect_InvalidDescriptor(t *testing.T) {
	s := New(&migration.Config{DSN: "postgresql://localhost:5432/app"})

	_, err := s.Connect()
	if err == nil {
		t.Fatal("expected a connect error")
	}
	var cerr *migration.ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConnectError, got %T", err)
	}
	var ferr *migration.FormatError
	if !errors.As(err, &ferr) {
		t.Error("ConnectError should preserve the FormatError cause")
	}
	if cerr.DSN != "postgresql://localhost:5432/app" {
		t.Errorf("ConnectError.DSN = %q", cerr.DSN)
	}
}

func TestDriverConfig(t *testing.T) {
	d := NewDialect()
	cfg := d.DriverConfig(map[string]any{
		"host":         "db.internal",
		"port":         3307,
		"user":         "svc",
		"password":     "secret",
		"database":     "app",
		"autocommit":   true,
		"ssl_disabled": true,
	})

	if cfg.Addr != "db.internal:3307" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.User != "svc" || cfg.Passwd != "secret" || cfg.DBName != "app" {
		t.Errorf("credentials wrong: %+v", cfg)
	}
	if !cfg.ParseTime {
		t.Error("ParseTime must be enabled")
	}
	// autocommit=true is the server default; no session override needed
	if _, ok := cfg.Params["autocommit"]; ok {
		t.Error("autocommit=true must not set a session param")
	}
	if cfg.TLSConfig != "false" {
		t.Errorf("TLSConfig = %q, want false for ssl_disabled", cfg.TLSConfig)
	}
}

func TestDriverConfig_AutocommitOff(t *testing.T) {
	d := NewDialect()
	cfg := d.DriverConfig(map[string]any{
		"host":       "localhost",
		"port":       3306,
		"autocommit": false,
	})
	if cfg.Params["autocommit"] != "0" {
		t.Errorf("Params = %v, want autocommit=0", cfg.Params)
	}
}
