// Package benchmark runs the fixed query battery against loaded engines and
// collects wall-clock timings into a ComparisonTable.
//
// Every measurement is taken from dispatch until the engine has fully
// consumed the result. Cases run sequentially within one engine; different
// engines may run in parallel when asked. A failing query is recorded with a
// null result and an error tag and never stops the rest of the table.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dbbench/internal/metrics"
	"dbbench/internal/storage"
)

// Target is one engine under test. Targets keep their declaration order,
// which breaks ties between equal timings.
type Target struct {
	Name   string
	Engine storage.Engine
	Table  string
}

// Options tunes a run.
type Options struct {
	// Warmup runs each query once, untimed, before measuring.
	Warmup bool
	// Repeat is the number of timed runs per pair; the median is recorded.
	Repeat int
	// ConcurrentEngines runs different engines in parallel.
	ConcurrentEngines bool
	// CaseTimeout bounds one case on one engine, warmup included.
	CaseTimeout time.Duration
}

// QueryError marks a failed case on one engine.
type QueryError struct {
	Case   string
	Engine string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("benchmark %s on %s: %v", e.Case, e.Engine, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Run measures every case on every target. It returns the table built so far
// together with ctx.Err() when cancelled between cases.
func Run(ctx context.Context, cs []Case, targets []Target, opt Options) (*ComparisonTable, error) {
	if len(cs) == 0 {
		return nil, errors.New("no benchmark cases selected")
	}
	if len(targets) == 0 {
		return nil, errors.New("no engines to benchmark")
	}
	if opt.Repeat < 1 {
		opt.Repeat = 1
	}

	t := &ComparisonTable{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Warmup:    opt.Warmup,
		Repeat:    opt.Repeat,
	}
	for _, tg := range targets {
		t.Engines = append(t.Engines, tg.Name)
	}
	for _, c := range cs {
		t.Cases = append(t.Cases, c.ID)
	}

	perEngine := make([][]Result, len(targets))
	var g errgroup.Group
	if !opt.ConcurrentEngines {
		g.SetLimit(1)
	}
	for i, tg := range targets {
		i, tg := i, tg
		g.Go(func() error {
			perEngine[i] = runTarget(ctx, cs, tg, opt)
			return nil
		})
	}
	_ = g.Wait()

	for ci := range cs {
		for ei := range targets {
			if ci < len(perEngine[ei]) {
				t.Results = append(t.Results, perEngine[ei][ci])
			}
		}
	}
	t.computeWinners()
	t.Elapsed = time.Since(t.StartedAt)
	t.ElapsedSeconds = t.Elapsed.Seconds()
	return t, ctx.Err()
}

func runTarget(ctx context.Context, cs []Case, tg Target, opt Options) []Result {
	out := make([]Result, 0, len(cs))
	kind := tg.Engine.Kind()
	start := time.Now()
	var failed error
	for _, c := range cs {
		if ctx.Err() != nil {
			break
		}
		r := measure(ctx, c, tg, kind, opt)
		if r.Err != nil {
			failed = r.Err
			log.WithFields(log.Fields{"engine": tg.Name, "case": c.ID}).WithError(r.Err).Warn("benchmark case failed")
		} else {
			log.WithFields(log.Fields{
				"engine":  tg.Name,
				"case":    c.ID,
				"elapsed": r.Elapsed.Round(time.Microsecond),
				"rows":    *r.RowsReturned,
				"warm":    r.Warm,
			}).Info("benchmark case measured")
		}
		out = append(out, r)
	}
	metrics.RecordStep(tg.Name, "benchmark", failed, time.Since(start))
	return out
}

func measure(ctx context.Context, c Case, tg Target, kind string, opt Options) Result {
	r := Result{Case: c.ID, Engine: tg.Name, Kind: kind, Warm: opt.Warmup}
	fail := func(err error) Result {
		r.Err = &QueryError{Case: c.ID, Engine: tg.Name, Err: err}
		r.Error = r.Err.Error()
		r.Samples = nil
		return r
	}
	q, err := c.Query(kind, tg.Table)
	if err != nil {
		return fail(err)
	}
	if opt.CaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.CaseTimeout)
		defer cancel()
	}
	if opt.Warmup {
		if _, err := tg.Engine.RunQuery(ctx, q); err != nil {
			return fail(fmt.Errorf("warmup: %w", err))
		}
	}

	samples := make([]time.Duration, 0, opt.Repeat)
	var last storage.QueryResult
	for i := 0; i < opt.Repeat; i++ {
		t0 := time.Now()
		res, err := tg.Engine.RunQuery(ctx, q)
		d := time.Since(t0)
		if err != nil {
			return fail(err)
		}
		if i > 0 && rowsOf(c, res) != rowsOf(c, last) {
			log.WithFields(log.Fields{"engine": tg.Name, "case": c.ID, "run": i + 1}).
				Warn("row count changed between repetitions")
		}
		last = res
		samples = append(samples, d)
		r.Samples = append(r.Samples, d.Seconds()*1000)
		metrics.RecordQuery(c.ID, tg.Name, opt.Warmup, d)
	}
	r.Elapsed = median(samples)
	r.ElapsedMS = r.Elapsed.Seconds() * 1000
	rows := rowsOf(c, last)
	r.RowsReturned = &rows
	return r
}

func rowsOf(c Case, res storage.QueryResult) int64 {
	if c.ScalarRows && res.HasScalar {
		return res.Scalar
	}
	return res.Rows
}

// median of an even count is the mean of the two middle samples.
func median(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	s := slices.Clone(ds)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
