package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dbbench/internal/storage"
	chddl "dbbench/internal/storage/clickhouse/ddl"
)

// Format tags artifacts produced by Backup.
const Format = "clickhouse-backup"

// Backup runs BACKUP TABLE ... TO Disk(disk, '<name>.zip'). The returned
// path is a "disk:file" handle on the server.
func (e *Engine) Backup(ctx context.Context, req storage.BackupRequest) (storage.BackupResult, error) {
	start := time.Now()
	file := req.Name + ".zip"
	stmt := fmt.Sprintf("BACKUP TABLE %s TO %s", chddl.QuoteFQN(req.Table), diskExpr(e.disk, file))
	if err := e.conn.Exec(ctx, stmt); err != nil {
		return storage.BackupResult{}, fmt.Errorf("clickhouse: backup %s: %w", req.Table, err)
	}
	return storage.BackupResult{
		Path:   e.disk + ":" + file,
		Format: Format,
		Remote: true,
		Took:   time.Since(start),
	}, nil
}

// Restore runs RESTORE TABLE source AS new FROM the artifact's disk. The
// restored table keeps the engine and ordering of the original.
func (e *Engine) Restore(ctx context.Context, req storage.RestoreRequest) error {
	if req.Format != "" && req.Format != Format {
		return fmt.Errorf("clickhouse: cannot restore artifact format %q", req.Format)
	}
	disk, file, err := ParseHandle(req.Artifact)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("RESTORE TABLE %s AS %s FROM %s",
		chddl.QuoteFQN(req.SourceTable), chddl.QuoteFQN(req.NewTable), diskExpr(disk, file))
	if err := e.conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("clickhouse: restore into %s: %w", req.NewTable, err)
	}
	return nil
}

// ParseHandle splits a "disk:file" artifact handle.
func ParseHandle(h string) (disk, file string, err error) {
	disk, file, ok := strings.Cut(h, ":")
	if !ok || disk == "" || file == "" {
		return "", "", fmt.Errorf("clickhouse: artifact %q is not a disk:file handle", h)
	}
	return disk, file, nil
}

func diskExpr(disk, file string) string {
	return fmt.Sprintf("Disk(%s, %s)", literal(disk), literal(file))
}

func literal(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
