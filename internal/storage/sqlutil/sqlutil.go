// Package sqlutil holds the database/sql plumbing shared by the SQL backends.
package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"dbbench/internal/storage"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Exec adapts an Execer to storage.Execer so storage.ApplyDDL can drive it.
type Exec struct{ X Execer }

func (e Exec) Exec(ctx context.Context, stmt string) error {
	_, err := e.X.ExecContext(ctx, stmt)
	return err
}

// Query runs q and drains every row. A single-row, single-column integer
// result is also reported as Scalar.
func Query(ctx context.Context, q Queryer, query string) (storage.QueryResult, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return storage.QueryResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return storage.QueryResult{}, err
	}
	raw := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var (
		res    storage.QueryResult
		scalar int64
		isInt  bool
	)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return storage.QueryResult{}, err
		}
		if res.Rows == 0 && len(cols) == 1 {
			scalar, err = strconv.ParseInt(strings.TrimSpace(string(raw[0])), 10, 64)
			isInt = err == nil
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

// Count returns SELECT COUNT(*) for an already quoted table name.
func Count(ctx context.Context, q Queryer, quotedTable string) (int64, error) {
	res, err := Query(ctx, q, "SELECT COUNT(*) FROM "+quotedTable)
	if err != nil {
		return 0, err
	}
	if !res.HasScalar {
		return 0, fmt.Errorf("count %s: no integer result", quotedTable)
	}
	return res.Scalar, nil
}

// Placeholders returns n copies of mark joined by ", ". Numbered marks such
// as "$" or "@p" get the 1-based position appended.
func Placeholders(n int, mark string, numbered bool) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(mark)
		if numbered {
			sb.WriteString(strconv.Itoa(i + 1))
		}
	}
	return sb.String()
}

// QuoteList quotes each name with quote and joins them with ", ".
func QuoteList(names []string, quote func(string) string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return strings.Join(out, ", ")
}
