// Package metrics records operational metrics for harness runs behind a
// pluggable backend. The default backend is a no-op, so instrumentation is
// always safe to call. Concrete systems live in subpackages (prompush,
// datadog) and are installed once at startup with SetBackend.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names.
const (
	StepTotal     = "dbbench_step_total"
	StepDuration  = "dbbench_step_duration_seconds"
	RecordsTotal  = "dbbench_records_total"
	BatchesTotal  = "dbbench_batches_total"
	QueryDuration = "dbbench_query_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

// RecordStep counts one harness step (load, benchmark, backup, restore) for
// engine and records its duration.
func RecordStep(engine, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"engine": engine, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta to the record counter for kind ("succeeded",
// "failed").
func RecordRows(engine, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"engine": engine, "kind": kind})
}

// RecordBatches counts committed load batches.
func RecordBatches(engine string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"engine": engine})
}

// RecordQuery observes one benchmark measurement.
func RecordQuery(caseID, engine string, warm bool, d time.Duration) {
	current().ObserveHistogram(QueryDuration, d.Seconds(), Labels{
		"case":   caseID,
		"engine": engine,
		"warm":   strconv.FormatBool(warm),
	})
}
