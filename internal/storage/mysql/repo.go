// Package mysql implements the MySQL (InnoDB) storage engine using
// go-sql-driver/mysql. Batches are written either as chunked multi-row
// INSERTs inside one transaction or, with the local_infile option, as one
// LOAD DATA LOCAL INFILE statement streamed from memory.
package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"

	"dbbench/internal/config"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
	myddl "dbbench/internal/storage/mysql/ddl"
	"dbbench/internal/storage/sqlutil"
)

// maxPlaceholders keeps multi-row INSERTs under the protocol's 65535 limit.
const maxPlaceholders = 60000

// Engine is a MySQL-backed storage.Engine.
type Engine struct {
	name        string
	db          *sql.DB
	localInfile bool
}

var _ storage.Engine = (*Engine)(nil)

var readerSeq atomic.Uint64

// Open connects to cfg.DSN (go-sql-driver form, e.g.
// "user:pass@tcp(host:3306)/db"). Options: max_conns, local_infile.
func Open(ctx context.Context, cfg storage.Config) (*Engine, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	if cfg.Database != "" {
		mc.DBName = cfg.Database
	}
	mc.ParseTime = true
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	opts := config.Options(cfg.Options)
	if n := opts.Int("max_conns", 0); n > 0 {
		db.SetMaxOpenConns(n)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, storage.Connection(cfg.Name, cfg.DSN, err)
	}
	return &Engine{name: cfg.Name, db: db, localInfile: opts.Bool("local_infile", false)}, nil
}

func (e *Engine) Kind() string          { return myddl.Kind }
func (e *Engine) Family() schema.Family { return schema.Row }

func (e *Engine) EnsureTable(ctx context.Context, table string, s schema.LogicalSchema) error {
	return storage.ApplyDDL(ctx, sqlutil.Exec{X: e.db}, myddl.Kind, table, s)
}

func (e *Engine) DropTable(ctx context.Context, table string) error {
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myddl.QuoteFQN(table)); err != nil {
		return fmt.Errorf("mysql: drop %s: %w", table, err)
	}
	return nil
}

func (e *Engine) BulkIngest(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if e.localInfile {
		return e.loadData(ctx, table, columns, rows)
	}
	return e.insertRows(ctx, table, columns, rows)
}

// insertRows writes rows as multi-row INSERTs in one transaction.
func (e *Engine) insertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	per := maxPlaceholders / len(columns)
	if per < 1 {
		per = 1
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		myddl.QuoteFQN(table), sqlutil.QuoteList(columns, myddl.QuoteIdent))
	group := "(" + sqlutil.Placeholders(len(columns), "?", false) + ")"

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	args := make([]any, 0, per*len(columns))
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		args = args[:0]
		for i, row := range rows[start:end] {
			if len(row) != len(columns) {
				_ = tx.Rollback()
				return 0, fmt.Errorf("mysql: row %d has %d values for %d columns", start+i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		stmt := prefix + strings.TrimSuffix(strings.Repeat(group+",", end-start), ",")
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert into %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return int64(len(rows)), nil
}

// loadData streams rows as tab-separated text through a registered reader.
// The server must allow local_infile.
func (e *Engine) loadData(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	var buf bytes.Buffer
	if err := writeTSV(&buf, columns, rows); err != nil {
		return 0, err
	}
	name := fmt.Sprintf("dbbench-%d", readerSeq.Add(1))
	mysql.RegisterReaderHandler(name, func() io.Reader { return &buf })
	defer mysql.DeregisterReaderHandler(name)

	stmt := fmt.Sprintf("LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s CHARACTER SET utf8mb4 "+
		"FIELDS TERMINATED BY '\\t' ESCAPED BY '\\\\' LINES TERMINATED BY '\\n' (%s)",
		name, myddl.QuoteFQN(table), sqlutil.QuoteList(columns, myddl.QuoteIdent))
	res, err := e.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("mysql: load data into %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

var tsvEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func writeTSV(w *bytes.Buffer, columns []string, rows [][]any) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("mysql: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		for j, v := range row {
			if j > 0 {
				w.WriteByte('\t')
			}
			switch t := v.(type) {
			case nil:
				w.WriteString(`\N`)
			case time.Time:
				w.WriteString(t.Format("2006-01-02"))
			case string:
				tsvEscaper.WriteString(w, t)
			default:
				tsvEscaper.WriteString(w, fmt.Sprint(t))
			}
		}
		w.WriteByte('\n')
	}
	return nil
}

func (e *Engine) RunQuery(ctx context.Context, query string) (storage.QueryResult, error) {
	return sqlutil.Query(ctx, e.db, query)
}

func (e *Engine) CountRows(ctx context.Context, table string) (int64, error) {
	return sqlutil.Count(ctx, e.db, myddl.QuoteFQN(table))
}

func (e *Engine) Close() error { return e.db.Close() }
