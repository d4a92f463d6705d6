package config

import (
	"os"
	"strconv"
)

// envPrefix namespaces every override variable.
const envPrefix = "DBBENCH_"

// envOverride binds one DBBENCH_* variable to a field of the harness.
// set is only called when the variable is non-empty; it reports whether the
// value was usable.
type envOverride struct {
	name string
	set  func(h *Harness, v string) bool
}

func envInt(dst func(*Harness) *int) func(*Harness, string) bool {
	return func(h *Harness, v string) bool {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return false
		}
		*dst(h) = n
		return true
	}
}

func envString(dst func(*Harness) *string) func(*Harness, string) bool {
	return func(h *Harness, v string) bool {
		*dst(h) = v
		return true
	}
}

var envOverrides = []envOverride{
	{"BATCH_SIZE", envInt(func(h *Harness) *int { return &h.Load.BatchSize })},
	{"MAX_FAILURES", func(h *Harness, v string) bool {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return false
		}
		h.Load.MaxFailures = n
		return true
	}},
	{"SAMPLE_LIMIT", envInt(func(h *Harness) *int { return &h.Load.SampleLimit })},
	{"REPEAT", envInt(func(h *Harness) *int { return &h.Benchmark.Repeat })},
	{"REPORT_DIR", envString(func(h *Harness) *string { return &h.Reports.Dir })},
	{"REPORT_FORMAT", envString(func(h *Harness) *string { return &h.Reports.Format })},
	{"BACKUP_DIR", envString(func(h *Harness) *string { return &h.Backup.Dir })},
	{"LOCK_DIR", envString(func(h *Harness) *string { return &h.Lock.Dir })},
	{"LOG_LEVEL", envString(func(h *Harness) *string { return &h.Log.Level })},
}

// applyEnv overrides file values with DBBENCH_* environment variables and
// returns the names of variables whose values could not be parsed.
func (h *Harness) applyEnv() (ignored []string) {
	for _, o := range envOverrides {
		name := envPrefix + o.name
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if !o.set(h, v) {
			ignored = append(ignored, name)
		}
	}
	return ignored
}

// orDefault returns v unless it is the zero value.
func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
