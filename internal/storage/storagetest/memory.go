// Package storagetest provides an in-memory storage.Engine for tests of the
// loader, benchmark runner and backup coordinator.
package storagetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

// Memory keeps tables as row slices. Hooks let tests inject failures,
// cancellation and query results.
type Memory struct {
	KindName string
	Fam      schema.Family

	// IngestHook runs before a batch is committed; call counts from 1. A
	// non-nil error rejects the whole batch.
	IngestHook func(call int, rows [][]any) error
	// QueryHook answers RunQuery. When nil, RunQuery returns zero rows.
	QueryHook func(query string) (storage.QueryResult, error)

	mu      sync.Mutex
	tables  map[string][][]any
	calls   int
	queries []string
	closed  bool
}

var _ storage.Engine = (*Memory)(nil)

// NewMemory returns an empty row-family engine of kind "memory".
func NewMemory() *Memory {
	return &Memory{KindName: "memory", Fam: schema.Row, tables: map[string][][]any{}}
}

func (m *Memory) Kind() string          { return m.KindName }
func (m *Memory) Family() schema.Family { return m.Fam }

func (m *Memory) EnsureTable(_ context.Context, table string, _ schema.LogicalSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = nil
	}
	return nil
}

func (m *Memory) DropTable(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, table)
	return nil
}

func (m *Memory) BulkIngest(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	if m.IngestHook != nil {
		if err := m.IngestHook(call, rows); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		return 0, fmt.Errorf("memory: table %s does not exist", table)
	}
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], append([]any(nil), r...))
	}
	return int64(len(rows)), nil
}

func (m *Memory) RunQuery(_ context.Context, query string) (storage.QueryResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.QueryHook != nil {
		return m.QueryHook(query)
	}
	return storage.QueryResult{}, nil
}

func (m *Memory) CountRows(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return 0, fmt.Errorf("memory: table %s does not exist", table)
	}
	return int64(len(rows)), nil
}

// Backup writes the table as YAML to Dir/Name.yaml.
func (m *Memory) Backup(_ context.Context, req storage.BackupRequest) (storage.BackupResult, error) {
	start := time.Now()
	m.mu.Lock()
	rows, ok := m.tables[req.Table]
	m.mu.Unlock()
	if !ok {
		return storage.BackupResult{}, fmt.Errorf("memory: table %s does not exist", req.Table)
	}
	b, err := yaml.Marshal(rows)
	if err != nil {
		return storage.BackupResult{}, err
	}
	p := filepath.Join(req.Dir, req.Name+".yaml")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return storage.BackupResult{}, err
	}
	return storage.BackupResult{Path: p, Format: "memory-yaml", Size: int64(len(b)), Took: time.Since(start)}, nil
}

// Restore reads a Backup artifact into NewTable.
func (m *Memory) Restore(_ context.Context, req storage.RestoreRequest) error {
	b, err := os.ReadFile(req.Artifact)
	if err != nil {
		return err
	}
	var rows [][]any
	if err := yaml.Unmarshal(b, &rows); err != nil {
		return fmt.Errorf("memory: decode %s: %w", req.Artifact, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[req.NewTable]; ok {
		return fmt.Errorf("memory: table %s already exists", req.NewTable)
	}
	m.tables[req.NewTable] = rows
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Rows returns a copy of the rows stored in table.
func (m *Memory) Rows(table string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.tables[table]...)
}

// Put replaces the contents of table.
func (m *Memory) Put(table string, rows [][]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = rows
}

// IngestCalls reports how many BulkIngest calls were made.
func (m *Memory) IngestCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Queries returns the queries seen by RunQuery.
func (m *Memory) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
