// Package postgres implements the Postgres storage engine using pgx v5.
// Batches go through the COPY protocol; backups are COPY ... TO STDOUT CSV
// streams compressed with zstd.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dbbench/internal/config"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
	pgddl "dbbench/internal/storage/postgres/ddl"
)

// Engine is a Postgres-backed storage.Engine.
type Engine struct {
	name string
	pool *pgxpool.Pool

	// enums caches the enum type names per quoted table so BulkIngest can
	// register them on each pooled connection before COPY.
	enumsMu sync.Mutex
	enums   map[string][]string
}

var _ storage.Engine = (*Engine)(nil)

// Open builds a pool from cfg.DSN and pings it. Options: max_conns.
func Open(ctx context.Context, cfg storage.Config) (*Engine, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if n := config.Options(cfg.Options).Int("max_conns", 0); n > 0 {
		pc.MaxConns = int32(n)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, storage.Connection(cfg.Name, cfg.DSN, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, storage.Connection(cfg.Name, cfg.DSN, err)
	}
	return &Engine{name: cfg.Name, pool: pool, enums: map[string][]string{}}, nil
}

func (e *Engine) Kind() string          { return pgddl.Kind }
func (e *Engine) Family() schema.Family { return schema.Row }

// Exec implements storage.Execer.
func (e *Engine) Exec(ctx context.Context, sql string) error {
	_, err := e.pool.Exec(ctx, sql)
	return err
}

func (e *Engine) EnsureTable(ctx context.Context, table string, s schema.LogicalSchema) error {
	return storage.ApplyDDL(ctx, e, pgddl.Kind, table, s)
}

// DropTable drops table and the enum types it owns. Without a schema the
// owned types cannot be named, so they are looked up in the catalog first.
func (e *Engine) DropTable(ctx context.Context, table string) error {
	enums, err := e.enumTypes(ctx, table)
	if err != nil && !isUndefinedTable(err) {
		return err
	}
	stmts := []string{"DROP TABLE IF EXISTS " + pgddl.QuoteFQN(table)}
	for _, t := range enums {
		stmts = append(stmts, "DROP TYPE IF EXISTS "+t)
	}
	for _, s := range stmts {
		if err := e.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: %s: %w", s, err)
		}
	}
	e.enumsMu.Lock()
	delete(e.enums, table)
	e.enumsMu.Unlock()
	return nil
}

// BulkIngest copies rows with the binary COPY protocol. COPY is a single
// statement, so a failing row rejects the batch.
func (e *Engine) BulkIngest(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	if err := e.registerEnums(ctx, conn.Conn(), table); err != nil {
		return 0, err
	}
	n, err := conn.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy into %s: %s (%s): %w", table, pgErr.Detail, pgErr.SQLState(), err)
		}
		return 0, fmt.Errorf("postgres: copy into %s: %w", table, err)
	}
	return n, nil
}

// registerEnums loads the table's enum types into conn's type map; pgx cannot
// binary-encode a column whose OID it does not know.
func (e *Engine) registerEnums(ctx context.Context, conn *pgx.Conn, table string) error {
	e.enumsMu.Lock()
	names, ok := e.enums[table]
	e.enumsMu.Unlock()
	if !ok {
		var err error
		if names, err = e.enumTypes(ctx, table); err != nil {
			return err
		}
		e.enumsMu.Lock()
		e.enums[table] = names
		e.enumsMu.Unlock()
	}
	tm := conn.TypeMap()
	for _, n := range names {
		if _, ok := tm.TypeForName(n); ok {
			continue
		}
		t, err := conn.LoadType(ctx, n)
		if err != nil {
			return fmt.Errorf("postgres: load type %s: %w", n, err)
		}
		tm.RegisterType(t)
	}
	return nil
}

const enumTypesSQL = `
SELECT DISTINCT a.atttypid::regtype::text
FROM pg_attribute a
JOIN pg_type t ON t.oid = a.atttypid
WHERE a.attrelid = $1::regclass AND a.attnum > 0 AND NOT a.attisdropped AND t.typtype = 'e'
ORDER BY 1`

func (e *Engine) enumTypes(ctx context.Context, table string) ([]string, error) {
	rows, err := e.pool.Query(ctx, enumTypesSQL, pgddl.QuoteFQN(table))
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: enum types of %s: %w", table, err)
	}
	return names, nil
}

// RunQuery drains the result without decoding columns beyond the first
// row's single integer, if any.
func (e *Engine) RunQuery(ctx context.Context, query string) (storage.QueryResult, error) {
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return storage.QueryResult{}, err
	}
	defer rows.Close()

	var (
		res    storage.QueryResult
		scalar int64
		isInt  bool
	)
	single := len(rows.FieldDescriptions()) == 1
	for rows.Next() {
		if res.Rows == 0 && single {
			vals, err := rows.Values()
			if err != nil {
				return storage.QueryResult{}, err
			}
			scalar, isInt = asInt64(vals[0])
		} else {
			_ = rows.RawValues()
		}
		res.Rows++
	}
	if err := rows.Err(); err != nil {
		return storage.QueryResult{}, err
	}
	if res.Rows == 1 && isInt {
		res.Scalar, res.HasScalar = scalar, true
	}
	return res, nil
}

func (e *Engine) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := e.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgddl.QuoteFQN(table)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	}
	return 0, false
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
