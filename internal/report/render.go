package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"dbbench/internal/backup"
	"dbbench/internal/benchmark"
	"dbbench/internal/coerce"
	"dbbench/internal/config"
	"dbbench/internal/load"
	"dbbench/internal/probe"
)

// RenderLoad prints a load summary and its failure samples.
func RenderLoad(w io.Writer, r *load.Report) error {
	t := tablewriter.NewWriter(w)
	t.Header("Engine", "Table", "Status", "Total", "Succeeded", "Failed", "Batches", "Elapsed", "Rows/s")
	if err := t.Append([]string{
		r.Engine, r.Table, r.Status(),
		humanize.Comma(r.TotalRows), humanize.Comma(r.Succeeded), humanize.Comma(r.Failed),
		strconv.Itoa(r.Batches), r.Elapsed.Round(time.Millisecond).String(),
		humanize.Comma(int64(r.RowsPerSecond)),
	}); err != nil {
		return err
	}
	if err := t.Render(); err != nil {
		return err
	}
	return renderFailures(w, r.FailureSamples)
}

func renderFailures(w io.Writer, fs []coerce.Failure) error {
	if len(fs) == 0 {
		return nil
	}
	s := tablewriter.NewWriter(w)
	s.Header("Line", "Field", "Value", "Reason")
	for _, f := range fs {
		if err := s.Append([]string{strconv.FormatInt(f.Line, 10), f.Field, f.RawValue, f.Reason}); err != nil {
			return err
		}
	}
	return s.Render()
}

// RenderComparison prints one row per case and one column per engine, then
// the winner.
func RenderComparison(w io.Writer, ct *benchmark.ComparisonTable) error {
	t := tablewriter.NewWriter(w)
	hdr := []any{"Case"}
	for _, e := range ct.Engines {
		hdr = append(hdr, e)
	}
	hdr = append(hdr, "Winner")
	t.Header(hdr...)

	for _, c := range ct.Cases {
		row := []string{c}
		for _, e := range ct.Engines {
			r, ok := ct.Get(c, e)
			switch {
			case !ok:
				row = append(row, "-")
			case r.RowsReturned == nil:
				row = append(row, "error")
			default:
				row = append(row, fmt.Sprintf("%s (%s rows)", fmtMS(r.ElapsedMS), humanize.Comma(*r.RowsReturned)))
			}
		}
		if win, ok := ct.Winner(c); ok {
			row = append(row, win.Engine)
		} else {
			row = append(row, "-")
		}
		if err := t.Append(row); err != nil {
			return err
		}
	}
	if err := t.Render(); err != nil {
		return err
	}
	mode := "cold"
	if ct.Warmup {
		mode = "warm"
	}
	_, err := fmt.Fprintf(w, "%s run, median of %d; run id %s\n", mode, ct.Repeat, ct.RunID)
	for _, r := range ct.Failed() {
		if err != nil {
			break
		}
		_, err = fmt.Fprintf(w, "  %s on %s: %s\n", r.Case, r.Engine, r.Error)
	}
	return err
}

// RenderArtifact prints a backup manifest.
func RenderArtifact(w io.Writer, a *backup.Artifact) error {
	t := tablewriter.NewWriter(w)
	t.Header("Engine", "Table", "Rows", "Format", "Size", "Artifact")
	size := "-"
	if a.Size > 0 {
		size = humanize.Bytes(uint64(a.Size))
	}
	if err := t.Append([]string{a.Engine, a.SourceTable, humanize.Comma(a.SourceRowCount), a.Format, size, a.Path}); err != nil {
		return err
	}
	return t.Render()
}

// RenderRestore prints a restore outcome.
func RenderRestore(w io.Writer, r *backup.RestoreReport) error {
	t := tablewriter.NewWriter(w)
	t.Header("Engine", "New table", "Expected", "Restored", "Verified")
	if err := t.Append([]string{
		r.Engine, r.NewTable,
		humanize.Comma(r.ExpectedRowCount), humanize.Comma(r.RestoredRowCount),
		strconv.FormatBool(r.MatchesSource),
	}); err != nil {
		return err
	}
	return t.Render()
}

// RenderIssues prints config lint findings.
func RenderIssues(w io.Writer, issues []config.Issue) error {
	t := tablewriter.NewWriter(w)
	t.Header("Severity", "Path", "Message")
	for _, i := range issues {
		if err := t.Append([]string{string(i.Severity), i.Path, i.Message}); err != nil {
			return err
		}
	}
	return t.Render()
}

func fmtMS(ms float64) string {
	switch {
	case ms >= 1000:
		return strconv.FormatFloat(ms/1000, 'f', 2, 64) + "s"
	case ms >= 10:
		return strconv.FormatFloat(ms, 'f', 1, 64) + "ms"
	default:
		return strconv.FormatFloat(ms, 'f', 3, 64) + "ms"
	}
}

// RenderProbe prints a probe summary and its per-field failures.
func RenderProbe(w io.Writer, s *probe.Summary) error {
	t := tablewriter.NewWriter(w)
	t.Header("Source", "Kind", "Rows", "Valid", "Failed", "Failed %", "Truncated")
	if err := t.Append([]string{
		s.Source, s.Kind,
		humanize.Comma(s.Rows), humanize.Comma(s.Valid), humanize.Comma(s.Failed),
		strconv.FormatFloat(s.FailureRatio()*100, 'f', 2, 64), strconv.FormatBool(s.Truncated),
	}); err != nil {
		return err
	}
	if err := t.Render(); err != nil {
		return err
	}
	if len(s.Fields) == 0 {
		return nil
	}
	f := tablewriter.NewWriter(w)
	f.Header("Field", "Failures", "Example", "Reason")
	for _, fs := range s.Fields {
		if err := f.Append([]string{fs.Field, humanize.Comma(fs.Failures), fs.Example, fs.Reason}); err != nil {
			return err
		}
	}
	if err := f.Render(); err != nil {
		return err
	}
	return renderFailures(w, s.Samples)
}
