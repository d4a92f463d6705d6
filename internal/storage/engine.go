// Package storage defines the capability set every target engine implements
// and a factory registry that lets callers open engines by kind without
// importing the backend packages directly.
package storage

import (
	"context"
	"time"

	"dbbench/internal/schema"
)

// Engine is one configured database target. Implementations are safe for
// sequential use by one operation at a time; the harness serializes work on
// the same table with internal/lock.
type Engine interface {
	// Kind returns the registered backend kind, e.g. "postgres".
	Kind() string
	Family() schema.Family

	// EnsureTable creates table (or collection) with the DDL emitted for s.
	// It is a no-op when the table already exists.
	EnsureTable(ctx context.Context, table string, s schema.LogicalSchema) error
	DropTable(ctx context.Context, table string) error

	// BulkIngest writes one batch through the engine's bulk path. Rows are
	// aligned with columns. The batch is committed as a unit or not at all.
	// Callers reuse the row slices, so implementations must not retain them.
	BulkIngest(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// RunQuery executes a read-only query and fully consumes its result.
	RunQuery(ctx context.Context, query string) (QueryResult, error)
	CountRows(ctx context.Context, table string) (int64, error)

	Backup(ctx context.Context, req BackupRequest) (BackupResult, error)
	Restore(ctx context.Context, req RestoreRequest) error

	Close() error
}

// QueryResult describes a fully materialized query result.
type QueryResult struct {
	// Rows is the number of result rows consumed.
	Rows int64
	// Scalar holds the single integer value of a one-row, one-column result.
	Scalar    int64
	HasScalar bool
}

// BackupRequest asks an engine to dump table into an artifact under Dir.
type BackupRequest struct {
	Table  string
	Schema schema.LogicalSchema
	Dir    string
	// Name is the artifact base name without extension; engines add their own.
	Name string
}

// BackupResult describes the artifact an engine produced.
type BackupResult struct {
	// Path is a local file path, or an engine-native handle when Remote is set.
	Path   string
	Format string
	Remote bool
	Size   int64
	Took   time.Duration
}

// RestoreRequest asks an engine to load an artifact into NewTable.
type RestoreRequest struct {
	Artifact    string
	Format      string
	SourceTable string
	NewTable    string
	Schema      schema.LogicalSchema
}

// Config carries the connection settings for one engine.
type Config struct {
	Kind     string
	Name     string
	DSN      string
	Database string
	// Options is the backend-specific free-form bag from configuration.
	Options map[string]any
}

// Factory opens an Engine for cfg.
type Factory func(ctx context.Context, cfg Config) (Engine, error)

// Execer runs a single statement without results.
type Execer interface {
	Exec(ctx context.Context, stmt string) error
}
