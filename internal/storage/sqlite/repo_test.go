package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

func newEngine(tb testing.TB, dsn string) *Engine {
	tb.Helper()
	e, err := Open(context.Background(), storage.Config{Kind: "sqlite", Name: "lite", DSN: dsn})
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = e.Close() })
	return e
}

func peopleRows() [][]any {
	return [][]any{
		{"u1", "ann", "Female", "ann@example.com", nil, "1990-01-02", "Engineer"},
		{"u2", "bob", "Male", "bob@example.com", "555-0100", "1985-06-30", nil},
		{"u3", "cy", "Male", "cy@example.com", nil, "2001-12-24", "Pilot"},
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, storage.ListKinds(), "sqlite")

	eng, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, "sqlite", eng.Kind())
	assert.Equal(t, schema.Row, eng.Family())
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), storage.Config{Kind: "sqlite"})
	assert.ErrorContains(t, err, "DSN must not be empty")
}

// TestEmittedDDLReadBack creates the table from the emitted DDL and asks
// SQLite for its columns: count and order must match the logical schema.
func TestEmittedDDLReadBack(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, ":memory:")
	s := schema.People()

	require.NoError(t, e.EnsureTable(ctx, "people", s))
	var (
		names   []string
		notNull = map[string]bool{}
		pk      string
	)
	rows, err := e.DB().QueryContext(ctx, `SELECT name, "notnull", pk FROM pragma_table_info('people') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var (
			name   string
			nn, ix int
		)
		require.NoError(t, rows.Scan(&name, &nn, &ix))
		names = append(names, name)
		notNull[name] = nn == 1
		if ix > 0 {
			pk = name
		}
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, s.Columns(), names)
	assert.Equal(t, "user_id", pk)
	for _, f := range s.Fields {
		assert.Equal(t, !f.Nullable, notNull[f.Name] || f.Name == pk, f.Name)
	}

	cols, err := e.Columns(ctx, "main.people")
	require.NoError(t, err)
	assert.Equal(t, s.Columns(), cols)
}

func TestEnsureTableRejectsStaleShape(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, ":memory:")
	_, err := e.DB().ExecContext(ctx, `CREATE TABLE people (user_id TEXT PRIMARY KEY, username TEXT)`)
	require.NoError(t, err)

	err = e.EnsureTable(ctx, "people", schema.People())
	assert.ErrorContains(t, err, "table people has 2 columns")

	_, err = e.Columns(ctx, "absent")
	assert.ErrorContains(t, err, "not found")
}

func TestIngestQueryCount(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, ":memory:")
	s := schema.People()

	require.NoError(t, e.EnsureTable(ctx, "people", s))
	require.NoError(t, e.EnsureTable(ctx, "people", s), "EnsureTable is idempotent")

	n, err := e.BulkIngest(ctx, "people", s.Columns(), peopleRows())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := e.CountRows(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	res, err := e.RunQuery(ctx, `SELECT "sex", COUNT(*) FROM "people" GROUP BY "sex"`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows)

	res, err = e.RunQuery(ctx, `SELECT * FROM "people" WHERE "dob" < '1995-01-01' ORDER BY "dob"`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows)
}

func TestBulkIngestIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, ":memory:")
	s := schema.People()
	require.NoError(t, e.EnsureTable(ctx, "people", s))

	rows := peopleRows()
	rows[2][2] = "Other" // violates the enum CHECK
	_, err := e.BulkIngest(ctx, "people", s.Columns(), rows)
	require.Error(t, err)

	count, err := e.CountRows(ctx, "people")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = e.BulkIngest(ctx, "people", s.Columns(), [][]any{{"u1"}})
	assert.ErrorContains(t, err, "1 values for 7 columns")
}

func TestDropTable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, ":memory:")
	require.NoError(t, e.EnsureTable(ctx, "people", schema.People()))
	require.NoError(t, e.DropTable(ctx, "people"))
	require.NoError(t, e.DropTable(ctx, "people"))
	_, err := e.CountRows(ctx, "people")
	assert.Error(t, err)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e := newEngine(t, filepath.Join(dir, "bench.db"))
	s := schema.People()
	require.NoError(t, e.EnsureTable(ctx, "people", s))
	_, err := e.BulkIngest(ctx, "people", s.Columns(), peopleRows())
	require.NoError(t, err)

	res, err := e.Backup(ctx, storage.BackupRequest{Table: "people", Schema: s, Dir: dir, Name: "lite-people"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lite-people.sqlite"), res.Path)
	assert.Equal(t, Format, res.Format)
	assert.Positive(t, res.Size)
	assert.Less(t, res.Took, time.Minute)

	_, err = e.Backup(ctx, storage.BackupRequest{Table: "people", Schema: s, Dir: dir, Name: "lite-people"})
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, e.Restore(ctx, storage.RestoreRequest{
		Artifact: res.Path, Format: res.Format, SourceTable: "people", NewTable: "people_restored", Schema: s,
	}))
	count, err := e.CountRows(ctx, "people_restored")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// constraints come from the schema, not the artifact
	_, err = e.BulkIngest(ctx, "people_restored", s.Columns(), [][]any{peopleRows()[0]})
	assert.Error(t, err, "primary key re-created on restore")

	err = e.Restore(ctx, storage.RestoreRequest{Artifact: res.Path, Format: "pg-copy-zstd", NewTable: "x", Schema: s})
	assert.ErrorContains(t, err, "cannot restore artifact format")
}
