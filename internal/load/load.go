// Package load streams source records through a coercion plan into an
// engine's bulk-ingest path one batch at a time.
//
// A batch is BatchSize source records. Its valid rows are committed with one
// BulkIngest call; invalid ones become failure samples. Tolerance and
// cancellation are checked only at batch boundaries, so an interrupted load
// leaves whole batches committed and never a partial one.
package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"dbbench/internal/coerce"
	"dbbench/internal/metrics"
	"dbbench/internal/parser/csv"
	"dbbench/internal/storage"
)

// DefaultBatchSize balances per-call overhead against memory.
const DefaultBatchSize = 10000

// RecordSource is a lazy sequence of source records. Next returns io.EOF
// at the end and a *csv.RowError for a malformed line.
type RecordSource interface {
	Next() (coerce.SourceRecord, error)
}

// Options configures Run.
type Options struct {
	// Engine is the configured engine name, used in reports and logs.
	Engine    string
	Table     string
	Source    string
	BatchSize int
	Tolerance Tolerance
	// SampleLimit bounds Report.FailureSamples.
	SampleLimit int
}

// Run drains src into table on eng. It always returns a non-nil report.
// The error is an *AbortedError when the tolerance is exceeded and wraps
// ctx.Err() when the load was cancelled.
func Run(ctx context.Context, src RecordSource, plan *coerce.Plan, eng storage.Engine, opt Options) (*Report, error) {
	if opt.BatchSize <= 0 {
		opt.BatchSize = DefaultBatchSize
	}
	if opt.SampleLimit < 0 {
		opt.SampleLimit = 0
	}
	rep := &Report{
		Engine:    opt.Engine,
		Kind:      eng.Kind(),
		Table:     opt.Table,
		Source:    opt.Source,
		BatchSize: opt.BatchSize,
		Tolerance: opt.Tolerance.String(),
		StartedAt: time.Now().UTC(),
	}
	err := run(ctx, src, plan, eng, opt, rep)
	rep.finish()
	if err != nil && rep.Error == "" && !rep.Cancelled && !rep.Aborted {
		rep.Error = err.Error()
	}
	metrics.RecordStep(opt.Engine, "load", err, rep.Elapsed)

	fields := log.Fields{
		"engine":    opt.Engine,
		"table":     opt.Table,
		"total":     humanize.Comma(rep.TotalRows),
		"succeeded": humanize.Comma(rep.Succeeded),
		"failed":    humanize.Comma(rep.Failed),
		"batches":   rep.Batches,
		"elapsed":   rep.Elapsed.Round(time.Millisecond),
		"status":    rep.Status(),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("load finished early")
	} else {
		log.WithFields(fields).Info("load complete")
	}
	return rep, err
}

func run(ctx context.Context, src RecordSource, plan *coerce.Plan, eng storage.Engine, opt Options, rep *Report) error {
	columns := plan.Columns()
	// Value slices are reused across batches; engines copy what they keep.
	slots := make([][]any, opt.BatchSize)
	for i := range slots {
		slots[i] = make([]any, len(columns))
	}
	rows := make([][]any, 0, opt.BatchSize)
	ingestCtx := context.WithoutCancel(ctx)
	lastTS := time.Now()

	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			// A source that ended on a batch boundary was loaded in full.
			if _, perr := src.Next(); errors.Is(perr, io.EOF) {
				return nil
			}
			rep.Cancelled = true
			return fmt.Errorf("load cancelled after %d batches: %w", rep.Batches, err)
		}

		rows = rows[:0]
		var read, failed int64
		eof := false
		for read < int64(opt.BatchSize) {
			sr, err := src.Next()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			var rowErr *csv.RowError
			if errors.As(err, &rowErr) {
				read++
				failed++
				rep.sample(opt.SampleLimit, coerce.Failure{Line: rowErr.Line, RawValue: rowErr.Raw, Reason: rowErr.Err.Error()})
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					rep.Cancelled = true
					return fmt.Errorf("load cancelled while reading batch %d: %w", batch, ctx.Err())
				}
				return fmt.Errorf("read source at batch %d: %w", batch, err)
			}
			read++
			rec, f := plan.Coerce(sr, slots[len(rows)])
			if f != nil {
				failed++
				rep.sample(opt.SampleLimit, *f)
				continue
			}
			rows = append(rows, rec.Values)
		}

		if len(rows) > 0 {
			n, err := eng.BulkIngest(ingestCtx, opt.Table, columns, rows)
			if err != nil {
				return fmt.Errorf("ingest batch %d (%d rows) into %s: %w", batch, len(rows), opt.Table, err)
			}
			if n != int64(len(rows)) {
				log.WithFields(log.Fields{"engine": opt.Engine, "batch": batch, "sent": len(rows), "reported": n}).
					Warn("engine reported a different row count for batch")
			}
			rep.Batches++
			metrics.RecordBatches(opt.Engine, 1)
		}
		rep.TotalRows += read
		rep.Succeeded += int64(len(rows))
		rep.Failed += failed
		metrics.RecordRows(opt.Engine, "succeeded", int64(len(rows)))
		metrics.RecordRows(opt.Engine, "failed", failed)

		if read > 0 {
			now := time.Now()
			rps := 0.0
			if d := now.Sub(lastTS); d > 0 {
				rps = float64(len(rows)) / d.Seconds()
			}
			lastTS = now
			log.WithFields(log.Fields{
				"engine":    opt.Engine,
				"batch":     batch,
				"rows":      len(rows),
				"failed":    failed,
				"rps":       humanize.Commaf(float64(int64(rps))),
				"total":     humanize.Comma(rep.TotalRows),
				"succeeded": humanize.Comma(rep.Succeeded),
			}).Info("batch committed")
		}

		if opt.Tolerance.Exceeded(rep.Failed, rep.TotalRows) {
			rep.Aborted = true
			return &AbortedError{Report: rep}
		}
		if eof {
			return nil
		}
	}
}

func (r *Report) sample(limit int, f coerce.Failure) {
	if len(r.FailureSamples) < limit {
		r.FailureSamples = append(r.FailureSamples, f)
	}
}
