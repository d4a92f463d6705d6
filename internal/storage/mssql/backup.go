package mssql

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"dbbench/internal/storage"
	msddl "dbbench/internal/storage/mssql/ddl"
	"dbbench/internal/storage/sqlutil"
)

// Format tags artifacts produced by Backup.
const Format = "mssql-csv-zstd"

// restoreBatch is the number of rows per BulkIngest call during Restore.
const restoreBatch = 5000

// Backup dumps the table's schema columns as zstd-compressed CSV.
func (e *Engine) Backup(ctx context.Context, req storage.BackupRequest) (storage.BackupResult, error) {
	start := time.Now()
	path := filepath.Join(req.Dir, req.Name+".csv.zst")
	q := fmt.Sprintf("SELECT %s FROM %s",
		sqlutil.QuoteList(req.Schema.Columns(), msddl.QuoteIdent), msddl.QuoteFQN(req.Table))
	size, err := sqlutil.Dump(ctx, e.db, q, path)
	if err != nil {
		return storage.BackupResult{}, fmt.Errorf("mssql: backup %s: %w", req.Table, err)
	}
	return storage.BackupResult{Path: path, Format: Format, Size: size, Took: time.Since(start)}, nil
}

// Restore creates NewTable from the schema and replays the dump into it.
func (e *Engine) Restore(ctx context.Context, req storage.RestoreRequest) error {
	if req.Format != "" && req.Format != Format {
		return fmt.Errorf("mssql: cannot restore artifact format %q", req.Format)
	}
	if err := e.EnsureTable(ctx, req.NewTable, req.Schema); err != nil {
		return err
	}
	cols := req.Schema.Columns()
	_, err := sqlutil.Restore(req.Artifact, req.Schema, restoreBatch, func(rows [][]any) error {
		_, err := e.BulkIngest(ctx, req.NewTable, cols, rows)
		return err
	})
	if err != nil {
		return fmt.Errorf("mssql: restore into %s: %w", req.NewTable, err)
	}
	return nil
}
