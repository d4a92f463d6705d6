package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"dbbench/internal/storage"
	pgddl "dbbench/internal/storage/postgres/ddl"
)

// Format tags artifacts produced by Backup.
const Format = "pg-copy-csv-zstd"

// Backup streams COPY (SELECT ...) TO STDOUT in CSV through zstd into
// Dir/Name.csv.zst. Columns follow the schema order.
func (e *Engine) Backup(ctx context.Context, req storage.BackupRequest) (storage.BackupResult, error) {
	start := time.Now()
	path := filepath.Join(req.Dir, req.Name+".csv.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return storage.BackupResult{}, fmt.Errorf("postgres: create artifact: %w", err)
	}
	fail := func(err error) (storage.BackupResult, error) {
		f.Close()
		os.Remove(path)
		return storage.BackupResult{}, fmt.Errorf("postgres: backup %s: %w", req.Table, err)
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fail(err)
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		zw.Close()
		return fail(err)
	}
	defer conn.Release()

	sql := fmt.Sprintf("COPY (SELECT %s FROM %s) TO STDOUT WITH (FORMAT csv)",
		quoteColumns(req.Schema.Columns()), pgddl.QuoteFQN(req.Table))
	if _, err := conn.Conn().PgConn().CopyTo(ctx, zw, sql); err != nil {
		zw.Close()
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	fi, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	return storage.BackupResult{Path: path, Format: Format, Size: fi.Size(), Took: time.Since(start)}, nil
}

// Restore creates NewTable (and its enum types) from the schema, then feeds
// the decompressed CSV to COPY ... FROM STDIN.
func (e *Engine) Restore(ctx context.Context, req storage.RestoreRequest) error {
	if req.Format != "" && req.Format != Format {
		return fmt.Errorf("postgres: cannot restore artifact format %q", req.Format)
	}
	f, err := os.Open(req.Artifact)
	if err != nil {
		return fmt.Errorf("postgres: artifact: %w", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("postgres: artifact: %w", err)
	}
	defer zr.Close()

	if err := e.EnsureTable(ctx, req.NewTable, req.Schema); err != nil {
		return err
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	sql := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv)",
		pgddl.QuoteFQN(req.NewTable), quoteColumns(req.Schema.Columns()))
	if _, err := conn.Conn().PgConn().CopyFrom(ctx, zr, sql); err != nil {
		return fmt.Errorf("postgres: restore into %s: %w", req.NewTable, err)
	}
	return nil
}

func quoteColumns(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgddl.QuoteIdent(c)
	}
	return strings.Join(out, ", ")
}
