package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"dbbench/internal/backup"
	"dbbench/internal/benchmark"
	"dbbench/internal/coerce"
	"dbbench/internal/load"
	"dbbench/internal/probe"
)

func fixedWriter(t *testing.T, format string) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), format)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600)) }
	return w
}

func TestFileName(t *testing.T) {
	w := fixedWriter(t, "")
	name := w.FileName("load", "pg main")
	assert.Regexp(t, regexp.MustCompile(`^load-pg_main-20260506T060809Z-[0-9a-f]{8}\.yaml$`), name)
	assert.NotEqual(t, name, w.FileName("load", "pg main"), "short id keeps runs apart")

	_, err := NewWriter("x", "xml")
	assert.ErrorContains(t, err, "unknown report format")
}

func TestWriteLoadReportYAML(t *testing.T) {
	w := fixedWriter(t, YAML)
	rep := &load.Report{
		Engine: "pg", Table: "people", TotalRows: 5, Succeeded: 4, Failed: 1, Tolerance: "1",
		FailureSamples: []coerce.Failure{{Line: 5, Field: "dob", RawValue: "13/45/2020", Reason: "not a valid month/day/year date"}},
	}
	p, err := w.Write("load", "pg", rep)
	require.NoError(t, err)
	assert.Equal(t, w.Dir, filepath.Dir(p))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, 4, got["succeeded"])
	assert.Equal(t, false, got["aborted"])
	samples := got["failure_samples"].([]any)
	assert.Equal(t, "dob", samples[0].(map[string]any)["field"])
}

func TestWriteComparisonJSONKeepsNullResults(t *testing.T) {
	w := fixedWriter(t, JSON)
	n := int64(1000)
	ct := &benchmark.ComparisonTable{
		RunID: "r1", Engines: []string{"pg", "ch"}, Cases: []string{"count-all"}, Repeat: 1,
		Results: []benchmark.Result{
			{Case: "count-all", Engine: "pg", ElapsedMS: 12.5, RowsReturned: &n},
			{Case: "count-all", Engine: "ch", Error: "benchmark count-all on ch: boom"},
		},
		Winners: []benchmark.Winner{{Case: "count-all", Engine: "pg", ElapsedMS: 12.5}},
	}
	p, err := w.Write("benchmark", "run", ct)
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(p))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var got struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got.Results, 2)
	assert.Nil(t, got.Results[1]["rows_returned"])
	assert.Equal(t, float64(1000), got.Results[0]["rows_returned"])
}

func TestRenderComparison(t *testing.T) {
	n := int64(1000)
	ct := &benchmark.ComparisonTable{
		RunID: "r1", Warmup: true, Repeat: 3, Engines: []string{"pg", "ch"}, Cases: []string{"count-all"},
		Results: []benchmark.Result{
			{Case: "count-all", Engine: "pg", ElapsedMS: 12.5, RowsReturned: &n},
			{Case: "count-all", Engine: "ch", Error: "boom"},
		},
		Winners: []benchmark.Winner{{Case: "count-all", Engine: "pg"}},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderComparison(&buf, ct))
	out := buf.String()
	assert.Contains(t, out, "12.5ms (1,000 rows)")
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "warm run, median of 3")
	assert.Contains(t, out, "count-all on ch: boom")
}

func TestRenderLoadAndRestore(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderLoad(&buf, &load.Report{
		Engine: "pg", Table: "people", TotalRows: 1234567, Succeeded: 1234566, Failed: 1,
		FailureSamples: []coerce.Failure{{Line: 9, Field: "sex", RawValue: "male", Reason: "not one of [Male, Female]"}},
	}))
	assert.Contains(t, buf.String(), "1,234,567")
	assert.Contains(t, buf.String(), "not one of [Male, Female]")

	buf.Reset()
	require.NoError(t, RenderRestore(&buf, &backup.RestoreReport{Engine: "pg", NewTable: "people_r", ExpectedRowCount: 3, RestoredRowCount: 2}))
	assert.Contains(t, buf.String(), "people_r")
	assert.Contains(t, buf.String(), "false")
}

func TestRenderProbe(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderProbe(&buf, &probe.Summary{
		Source: "people.csv", Kind: "postgres", Rows: 4, Valid: 3, Failed: 1,
		Fields: []probe.FieldStats{{Field: "dob", Failures: 1, Example: "13/45/2020", Reason: "invalid month/day/year date"}},
	}))
	out := buf.String()
	assert.Contains(t, out, "25.00")
	assert.Contains(t, out, "13/45/2020")
}

func TestFmtMS(t *testing.T) {
	assert.Equal(t, "0.250ms", fmtMS(0.25))
	assert.Equal(t, "12.5ms", fmtMS(12.5))
	assert.Equal(t, "1.50s", fmtMS(1500))
}
