package mssql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

// --- Test driver plumbing for exercising error paths without a real DB --

type errDriver struct{}

type errConn struct{}

func (d *errDriver) Open(name string) (driver.Conn, error) {
	return &errConn{}, nil
}

// Prepare is not expected to be called in our tests; if it is, fail loudly.
func (c *errConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("unexpected Prepare call")
}

func (c *errConn) Close() error { return nil }

// Begin is required by driver.Conn; database/sql calls BeginTx when available.
func (c *errConn) Begin() (driver.Tx, error) {
	return nil, errors.New("begin (legacy) should not be called")
}

// BeginTx always fails, to exercise the error path in BulkIngest.
func (c *errConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, errors.New("begin failed")
}

// ExecContext always fails, to exercise DropTable and EnsureTable.
func (c *errConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return nil, errors.New("exec failed")
}

func (c *errConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return nil, errors.New("query failed")
}

var (
	testDriverOnce sync.Once
	testDriverName = "mssql_test_err"
)

func errEngine(t *testing.T) *Engine {
	t.Helper()

	testDriverOnce.Do(func() {
		sql.Register(testDriverName, &errDriver{})
	})
	db, err := sql.Open(testDriverName, "")
	if err != nil {
		t.Fatalf("sql.Open(%q) error = %v", testDriverName, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Engine{name: "ms", db: db}
}

// --- Tests ---

func TestRegistrationUsesOpenHook(t *testing.T) {
	orig := open
	defer func() { open = orig }()

	var got storage.Config
	open = func(ctx context.Context, cfg storage.Config) (*Engine, error) {
		got = cfg
		return &Engine{name: cfg.Name}, nil
	}
	eng, err := storage.New(context.Background(), storage.Config{Kind: "mssql", Name: "ms", DSN: "sqlserver://u:p@h"})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if eng.Kind() != "mssql" || eng.Family() != schema.Row {
		t.Fatalf("engine = %s/%s, want mssql/row", eng.Kind(), eng.Family())
	}
	if got.Name != "ms" {
		t.Fatalf("open got name %q, want ms", got.Name)
	}
}

func TestBulkIngestBeginTxError(t *testing.T) {
	t.Parallel()

	e := errEngine(t)
	n, err := e.BulkIngest(context.Background(), "dbo.t", []string{"id", "name"}, [][]any{{1, "alice"}, {2, "bob"}})
	if err == nil {
		t.Fatalf("BulkIngest() error = nil, want non-nil when BeginTx fails")
	}
	if n != 0 {
		t.Fatalf("BulkIngest() rows = %d, want 0 on error", n)
	}
	if !strings.Contains(err.Error(), "begin tx:") {
		t.Fatalf("BulkIngest() error = %q, want it wrapped with 'begin tx:'", err.Error())
	}
}

func TestBulkIngestEmptyBatch(t *testing.T) {
	t.Parallel()

	n, err := errEngine(t).BulkIngest(context.Background(), "dbo.t", []string{"id"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("BulkIngest(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestDDLErrorsPropagate(t *testing.T) {
	t.Parallel()

	e := errEngine(t)
	ctx := context.Background()
	if err := e.DropTable(ctx, "dbo.people"); err == nil || !strings.Contains(err.Error(), "exec failed") {
		t.Fatalf("DropTable() error = %v, want exec failed", err)
	}
	err := e.EnsureTable(ctx, "dbo.people", schema.People())
	if err == nil || !strings.Contains(err.Error(), "apply DDL statement 1/") {
		t.Fatalf("EnsureTable() error = %v, want DDL statement context", err)
	}
	if _, err := e.CountRows(ctx, "dbo.people"); err == nil {
		t.Fatalf("CountRows() error = nil, want query failure")
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://host:notaport"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("Open() error = %v, want mssql dsn error", err)
	}
}

func TestEscapeLiteral(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"dbo.people", "dbo.people"},
		{"o'brien", "o''brien"},
		{"''", "''''"},
	}
	for _, tc := range cases {
		if got := escapeLiteral(tc.in); got != tc.want {
			t.Fatalf("escapeLiteral(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// getTestDSN reads MSSQL_TEST_DSN; when empty the live test is skipped.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

func TestLiveIngestBackupRestore(t *testing.T) {
	dsn := getTestDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e, err := Open(ctx, storage.Config{Kind: "mssql", Name: "ms", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer e.Close()

	s := schema.People()
	table := fmt.Sprintf("dbo.dbbench_it_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = e.DropTable(context.Background(), table)
		_ = e.DropTable(context.Background(), table+"_r")
	})
	if err := e.EnsureTable(ctx, table, s); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	dob := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	if _, err := e.BulkIngest(ctx, table, s.Columns(), [][]any{
		{"u1", "ann", "Female", "ann@example.com", nil, dob, "Engineer"},
		{"u2", "bob", "Male", "bob@example.com", "555", dob, nil},
	}); err != nil {
		t.Fatalf("BulkIngest() error = %v", err)
	}
	art, err := e.Backup(ctx, storage.BackupRequest{Table: table, Schema: s, Dir: t.TempDir(), Name: "ms"})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if err := e.Restore(ctx, storage.RestoreRequest{
		Artifact: art.Path, Format: art.Format, SourceTable: table, NewTable: table + "_r", Schema: s,
	}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	n, err := e.CountRows(ctx, table+"_r")
	if err != nil || n != 2 {
		t.Fatalf("CountRows() = %d, %v; want 2", n, err)
	}
}
