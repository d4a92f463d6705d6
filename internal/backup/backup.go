// Package backup drives each engine's native dump and restore primitives and
// verifies restored row counts against the count taken at backup time.
//
// Restores always go into a new table. A row-count mismatch is reported as a
// VerificationWarning on the RestoreReport; the restore itself still counts
// as done because the artifact may be valid even if the source drifted.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"dbbench/internal/metrics"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

// VerificationWarning reports a restored table whose row count differs from
// the source at backup time.
type VerificationWarning struct {
	Table    string
	Expected int64
	Actual   int64
}

func (w *VerificationWarning) Error() string {
	return fmt.Sprintf("restored table %s has %d rows, source had %d at backup time", w.Table, w.Actual, w.Expected)
}

// RestoreReport is the outcome of one restore.
type RestoreReport struct {
	Engine           string    `yaml:"engine" json:"engine"`
	Kind             string    `yaml:"kind" json:"kind"`
	Artifact         string    `yaml:"artifact" json:"artifact"`
	SourceTable      string    `yaml:"source_table" json:"source_table"`
	NewTable         string    `yaml:"new_table" json:"new_table"`
	ExpectedRowCount int64     `yaml:"expected_row_count" json:"expected_row_count"`
	RestoredRowCount int64     `yaml:"restored_row_count" json:"restored_row_count"`
	MatchesSource    bool      `yaml:"matches_source" json:"matches_source"`
	Warning          string    `yaml:"warning,omitempty" json:"warning,omitempty"`
	StartedAt        time.Time `yaml:"started_at" json:"started_at"`
	ElapsedSeconds   float64   `yaml:"elapsed_seconds" json:"elapsed_seconds"`
}

// Verification returns the mismatch as a warning value, or nil.
func (r *RestoreReport) Verification() *VerificationWarning {
	if r.MatchesSource {
		return nil
	}
	return &VerificationWarning{Table: r.NewTable, Expected: r.ExpectedRowCount, Actual: r.RestoredRowCount}
}

// Coordinator runs backups and restores for one engine.
type Coordinator struct {
	// Name is the configured engine name.
	Name   string
	Engine storage.Engine
	Schema schema.LogicalSchema
	// Dir holds local artifacts and every manifest.
	Dir string
	// Lock, when set, is held on the table for the duration of each backup
	// or restore.
	Lock LockFunc

	now func() time.Time
}

// LockFunc acquires an exclusive lock on table and returns its release.
type LockFunc func(ctx context.Context, table, op string) (release func(), err error)

func (c *Coordinator) lock(ctx context.Context, table, op string) (func(), error) {
	if c.Lock == nil {
		return func() {}, nil
	}
	return c.Lock(ctx, table, op)
}

// New returns a Coordinator writing under dir.
func New(name string, eng storage.Engine, s schema.LogicalSchema, dir string) *Coordinator {
	return &Coordinator{Name: name, Engine: eng, Schema: s, Dir: dir, now: time.Now}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// ArtifactName builds "<engine>-<table>-<UTC timestamp>".
func ArtifactName(engine, table string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s",
		unsafeName.ReplaceAllString(engine, "_"),
		unsafeName.ReplaceAllString(table, "_"),
		at.UTC().Format("20060102T150405.000Z"))
}

// Backup counts the source rows, asks the engine for a dump and writes the
// manifest.
func (c *Coordinator) Backup(ctx context.Context, table string) (a *Artifact, err error) {
	start := c.now()
	defer func() { metrics.RecordStep(c.Name, "backup", err, time.Since(start)) }()

	release, err := c.lock(ctx, table, "backup")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup dir: %w", err)
	}
	count, err := c.Engine.CountRows(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("count %s before backup: %w", table, err)
	}
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, err
	}
	name := ArtifactName(c.Name, table, start)
	res, err := c.Engine.Backup(ctx, storage.BackupRequest{Table: table, Schema: c.Schema, Dir: dir, Name: name})
	if err != nil {
		return nil, fmt.Errorf("backup %s on %s: %w", table, c.Name, err)
	}

	a = &Artifact{
		Engine:         c.Name,
		Kind:           c.Engine.Kind(),
		SourceTable:    table,
		Path:           res.Path,
		Format:         res.Format,
		Remote:         res.Remote,
		CreatedAt:      start.UTC(),
		SourceRowCount: count,
		Size:           res.Size,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	manifest := filepath.Join(dir, name+ManifestSuffix)
	if !res.Remote {
		if a.Checksum, err = Checksum(res.Path); err != nil {
			return nil, err
		}
		if fi, err := os.Stat(res.Path); err == nil {
			a.Size = fi.Size()
		}
		manifest = res.Path + ManifestSuffix
	}
	if err := WriteManifest(manifest, a); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"engine":   c.Name,
		"table":    table,
		"rows":     humanize.Comma(count),
		"size":     humanize.Bytes(uint64(max(a.Size, 0))),
		"artifact": a.Path,
		"took":     res.Took.Round(time.Millisecond),
	}).Info("backup written")
	return a, nil
}

// Restore loads the artifact named by ref (artifact or manifest path) into
// newTable and verifies the row count. A count mismatch is not an error; see
// RestoreReport.Verification.
func (c *Coordinator) Restore(ctx context.Context, ref, newTable string) (rep *RestoreReport, err error) {
	start := c.now()
	defer func() { metrics.RecordStep(c.Name, "restore", err, time.Since(start)) }()

	a, err := LoadManifest(ref)
	if err != nil {
		return nil, err
	}
	if a.Kind != c.Engine.Kind() {
		return nil, fmt.Errorf("artifact %s was made by a %s engine, cannot restore into %s (%s)", a.Path, a.Kind, c.Name, c.Engine.Kind())
	}
	newTable = strings.TrimSpace(newTable)
	if newTable == "" {
		return nil, errors.New("restore needs a new table name")
	}
	if strings.EqualFold(newTable, a.SourceTable) {
		return nil, fmt.Errorf("restore target %s is the source table; restores never overwrite the live table", newTable)
	}
	release, err := c.lock(ctx, newTable, "restore")
	if err != nil {
		return nil, err
	}
	defer release()
	if _, err := c.Engine.CountRows(ctx, newTable); err == nil {
		return nil, fmt.Errorf("restore target %s already exists on %s", newTable, c.Name)
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}

	err = c.Engine.Restore(ctx, storage.RestoreRequest{
		Artifact:    a.Path,
		Format:      a.Format,
		SourceTable: a.SourceTable,
		NewTable:    newTable,
		Schema:      c.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("restore %s into %s on %s: %w", a.Path, newTable, c.Name, err)
	}
	got, err := c.Engine.CountRows(ctx, newTable)
	if err != nil {
		return nil, fmt.Errorf("count restored table %s: %w", newTable, err)
	}

	rep = &RestoreReport{
		Engine:           c.Name,
		Kind:             a.Kind,
		Artifact:         a.Path,
		SourceTable:      a.SourceTable,
		NewTable:         newTable,
		ExpectedRowCount: a.SourceRowCount,
		RestoredRowCount: got,
		MatchesSource:    got == a.SourceRowCount,
		StartedAt:        start.UTC(),
		ElapsedSeconds:   time.Since(start).Seconds(),
	}
	fields := log.Fields{"engine": c.Name, "table": newTable, "restored": humanize.Comma(got), "expected": humanize.Comma(a.SourceRowCount)}
	if w := rep.Verification(); w != nil {
		rep.Warning = w.Error()
		log.WithFields(fields).Warn("restore verification mismatch")
	} else {
		log.WithFields(fields).Info("restore verified")
	}
	return rep, nil
}
