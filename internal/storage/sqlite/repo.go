// Package sqlite implements the SQLite storage engine using database/sql and
// the pure-Go modernc driver. SQLite has no bulk-load API like Postgres COPY,
// so each batch is one transaction over a prepared INSERT.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dbbench/internal/config"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
	sqliteddl "dbbench/internal/storage/sqlite/ddl"
	"dbbench/internal/storage/sqlutil"
)

// Engine is a SQLite-backed storage.Engine. The pool is pinned to one
// connection so ":memory:" databases and ATTACH state survive across calls.
type Engine struct {
	name string
	dsn  string
	db   *sql.DB
}

var _ storage.Engine = (*Engine)(nil)

// Open connects to cfg.DSN, a file path or "file:" URI. Options:
// busy_timeout (duration, default 5s), journal_mode (default WAL for files).
func Open(ctx context.Context, cfg storage.Config) (*Engine, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, storage.Connection(cfg.Name, cfg.DSN, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, storage.Connection(cfg.Name, cfg.DSN, err)
	}

	opts := config.Options(cfg.Options)
	busy := opts.Duration("busy_timeout", 5*time.Second)
	pragmas := []string{fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds())}
	if !strings.Contains(cfg.DSN, ":memory:") {
		pragmas = append(pragmas, "PRAGMA journal_mode = "+opts.String("journal_mode", "WAL"))
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return &Engine{name: cfg.Name, dsn: cfg.DSN, db: db}, nil
}

func (e *Engine) Kind() string          { return sqliteddl.Kind }
func (e *Engine) Family() schema.Family { return schema.Row }

// DB exposes the underlying pool for tests and tooling.
func (e *Engine) DB() *sql.DB { return e.db }

// EnsureTable creates table if needed and then checks that the columns
// SQLite reports match s, so a stale table of another shape is caught before
// any rows are sent.
func (e *Engine) EnsureTable(ctx context.Context, table string, s schema.LogicalSchema) error {
	if err := storage.ApplyDDL(ctx, sqlutil.Exec{X: e.db}, sqliteddl.Kind, table, s); err != nil {
		return err
	}
	cols, err := e.Columns(ctx, table)
	if err != nil {
		return err
	}
	return schema.CheckColumns(sqliteddl.Kind, table, s, cols)
}

// Columns lists the column names of table in declaration order.
func (e *Engine) Columns(ctx context.Context, table string) ([]string, error) {
	query, args := `SELECT name FROM pragma_table_info(?) ORDER BY cid`, []any{table}
	if db, name, ok := strings.Cut(table, "."); ok {
		query, args = `SELECT name FROM pragma_table_info(?, ?) ORDER BY cid`, []any{name, db}
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns of %s: %w", table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: table %s not found", table)
	}
	return cols, nil
}

// DropTable drops table; its indexes go with it.
func (e *Engine) DropTable(ctx context.Context, table string) error {
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqliteddl.QuoteFQN(table)); err != nil {
		return fmt.Errorf("sqlite: drop %s: %w", table, err)
	}
	return nil
}

// BulkIngest inserts rows in a single transaction with a prepared INSERT.
// Any failing row rolls back the whole batch.
func (e *Engine) BulkIngest(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: BulkIngest: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteddl.QuoteFQN(table),
		sqlutil.QuoteList(columns, sqliteddl.QuoteIdent),
		sqlutil.Placeholders(len(columns), "?", false))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return int64(len(rows)), nil
}

func (e *Engine) RunQuery(ctx context.Context, query string) (storage.QueryResult, error) {
	return sqlutil.Query(ctx, e.db, query)
}

func (e *Engine) CountRows(ctx context.Context, table string) (int64, error) {
	return sqlutil.Count(ctx, e.db, sqliteddl.QuoteFQN(table))
}

func (e *Engine) Close() error { return e.db.Close() }
