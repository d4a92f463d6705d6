package load

import (
	"fmt"
	"time"

	"dbbench/internal/coerce"
)

// Report summarizes one load invocation. It is not modified after Run
// returns. Rows of a batch the engine rejected are not counted in TotalRows.
type Report struct {
	Engine         string           `yaml:"engine" json:"engine"`
	Kind           string           `yaml:"kind" json:"kind"`
	Table          string           `yaml:"table" json:"table"`
	Source         string           `yaml:"source,omitempty" json:"source,omitempty"`
	TotalRows      int64            `yaml:"total_rows" json:"total_rows"`
	Succeeded      int64            `yaml:"succeeded" json:"succeeded"`
	Failed         int64            `yaml:"failed" json:"failed"`
	Batches        int              `yaml:"batches" json:"batches"`
	BatchSize      int              `yaml:"batch_size" json:"batch_size"`
	Tolerance      string           `yaml:"tolerance" json:"tolerance"`
	FailureSamples []coerce.Failure `yaml:"failure_samples,omitempty" json:"failure_samples,omitempty"`
	Aborted        bool             `yaml:"aborted" json:"aborted"`
	Cancelled      bool             `yaml:"cancelled" json:"cancelled"`
	Error          string           `yaml:"error,omitempty" json:"error,omitempty"`
	StartedAt      time.Time        `yaml:"started_at" json:"started_at"`
	Elapsed        time.Duration    `yaml:"-" json:"-"`
	ElapsedSeconds float64          `yaml:"elapsed_seconds" json:"elapsed_seconds"`
	RowsPerSecond  float64          `yaml:"rows_per_second" json:"rows_per_second"`
}

// Status is a one-word outcome for console output.
func (r *Report) Status() string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Aborted:
		return "aborted"
	case r.Error != "":
		return "failed"
	}
	return "ok"
}

func (r *Report) finish() {
	r.Elapsed = time.Since(r.StartedAt)
	r.ElapsedSeconds = r.Elapsed.Seconds()
	if s := r.Elapsed.Seconds(); s > 0 {
		r.RowsPerSecond = float64(r.Succeeded) / s
	}
}

// AbortedError is returned when failures exceed the tolerance. Batches
// committed before the abort stay committed.
type AbortedError struct {
	Report *Report
}

func (e *AbortedError) Error() string {
	r := e.Report
	return fmt.Sprintf("load into %s.%s aborted: %d failed rows exceed tolerance %s after %d rows (%d committed)",
		r.Engine, r.Table, r.Failed, r.Tolerance, r.TotalRows, r.Succeeded)
}
