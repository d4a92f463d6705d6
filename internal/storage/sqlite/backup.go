package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gddl "dbbench/internal/ddl"
	"dbbench/internal/storage"
	sqliteddl "dbbench/internal/storage/sqlite/ddl"
	"dbbench/internal/storage/sqlutil"
)

// Format tags artifacts produced by Backup.
const Format = "sqlite-db"

const attachAlias = "dbbench_artifact"

// Backup copies table into a standalone database file. The copy is a plain
// CREATE TABLE AS SELECT; Restore re-creates constraints and indexes from the
// schema before copying the rows back.
func (e *Engine) Backup(ctx context.Context, req storage.BackupRequest) (storage.BackupResult, error) {
	start := time.Now()
	path := filepath.Join(req.Dir, req.Name+".sqlite")
	if _, err := os.Stat(path); err == nil {
		return storage.BackupResult{}, fmt.Errorf("sqlite: artifact %s already exists", path)
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return storage.BackupResult{}, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+attachAlias, path); err != nil {
		return storage.BackupResult{}, fmt.Errorf("sqlite: attach %s: %w", path, err)
	}
	_, err = conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s.%s AS SELECT * FROM %s",
		attachAlias, sqliteddl.QuoteIdent(gddl.BaseName(req.Table)), sqliteddl.QuoteFQN(req.Table)))
	if err = errors.Join(err, detach(conn)); err != nil {
		_ = os.Remove(path)
		return storage.BackupResult{}, fmt.Errorf("sqlite: backup %s: %w", req.Table, err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return storage.BackupResult{}, err
	}
	return storage.BackupResult{Path: path, Format: Format, Size: fi.Size(), Took: time.Since(start)}, nil
}

// Restore creates NewTable from the schema and copies the artifact's rows
// into it.
func (e *Engine) Restore(ctx context.Context, req storage.RestoreRequest) error {
	if req.Format != "" && req.Format != Format {
		return fmt.Errorf("sqlite: cannot restore artifact format %q", req.Format)
	}
	if _, err := os.Stat(req.Artifact); err != nil {
		return fmt.Errorf("sqlite: artifact: %w", err)
	}
	if err := e.EnsureTable(ctx, req.NewTable, req.Schema); err != nil {
		return err
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+attachAlias, req.Artifact); err != nil {
		return fmt.Errorf("sqlite: attach %s: %w", req.Artifact, err)
	}
	cols := sqlutil.QuoteList(req.Schema.Columns(), sqliteddl.QuoteIdent)
	_, err = conn.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s.%s",
		sqliteddl.QuoteFQN(req.NewTable), cols, cols,
		attachAlias, sqliteddl.QuoteIdent(gddl.BaseName(req.SourceTable))))
	err = errors.Join(err, detach(conn))
	if err != nil {
		return fmt.Errorf("sqlite: restore into %s: %w", req.NewTable, err)
	}
	return nil
}

func detach(conn *sql.Conn) error {
	_, err := conn.ExecContext(context.Background(), "DETACH DATABASE "+attachAlias)
	return err
}
