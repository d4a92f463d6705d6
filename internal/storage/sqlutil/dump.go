package sqlutil

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"dbbench/internal/schema"
)

// NullMarker stands for SQL NULL in dump files; CSV has no native null.
// Text that starts with a backslash gets one more on write and loses it on
// read, so a literal `\N` survives as text.
const NullMarker = `\N`

const dateLayout = "2006-01-02"

// Dump runs query and writes its rows as zstd-compressed CSV to path, header
// first. The file must not exist. It returns the artifact size in bytes.
func Dump(ctx context.Context, q Queryer, query string, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	fail := func(err error) (int64, error) {
		f.Close()
		os.Remove(path)
		return 0, err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fail(err)
	}
	if err := WriteCSV(ctx, q, query, zw); err != nil {
		zw.Close()
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	fi, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	return fi.Size(), nil
}

// WriteCSV writes the result of query as CSV with a header row. Dates
// without a time of day are written as YYYY-MM-DD.
func WriteCSV(ctx context.Context, q Queryer, query string, w io.Writer) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	vals := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	rec := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return NullMarker
	case []byte:
		return escapeText(string(t))
	case string:
		return escapeText(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(dateLayout)
		}
		return t.Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return escapeText(fmt.Sprint(v))
}

func escapeText(s string) string {
	if strings.HasPrefix(s, `\`) {
		return `\` + s
	}
	return s
}

// Restore reads a file written by Dump and hands rows to ingest in batches
// of batchSize, typed for s: Date fields become time.Time and the null
// marker becomes nil. The header must match s's columns.
func Restore(path string, s schema.LogicalSchema, batchSize int, ingest func(rows [][]any) error) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer zr.Close()
	return ReadCSV(zr, s, batchSize, ingest)
}

// ReadCSV is the uncompressed half of Restore.
func ReadCSV(r io.Reader, s schema.LogicalSchema, batchSize int, ingest func(rows [][]any) error) (int64, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	hdr, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read dump header: %w", err)
	}
	want := s.Columns()
	if len(hdr) != len(want) {
		return 0, fmt.Errorf("dump has %d columns, schema %s has %d", len(hdr), s.Name, len(want))
	}
	for i := range want {
		if hdr[i] != want[i] {
			return 0, fmt.Errorf("dump column %d is %q, schema expects %q", i+1, hdr[i], want[i])
		}
	}

	var (
		total int64
		batch = make([][]any, 0, batchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ingest(batch); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = make([][]any, 0, batchSize)
		return nil
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("read dump: %w", err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			if v == NullMarker {
				continue
			}
			v = strings.TrimPrefix(v, `\`)
			if s.Fields[i].Type == schema.Date {
				t, err := time.Parse(dateLayout, v)
				if err != nil {
					return total, fmt.Errorf("dump column %s: %w", want[i], err)
				}
				row[i] = t
				continue
			}
			row[i] = v
		}
		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	return total, flush()
}

// compile-time check that *sql.DB works with Dump.
var _ Queryer = (*sql.DB)(nil)
