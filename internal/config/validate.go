// This file adds a lightweight linter for Harness values. It performs static
// checks over a decoded config and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "engines[1].kind",
// "load.max_ratio"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// KnownKinds lists the engine kinds built into the harness.
var KnownKinds = []string{"clickhouse", "mongodb", "mssql", "mysql", "postgres", "sqlite"}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateHarness performs static validation of a Harness. It does not
// mutate the config; callers decide whether warnings are fatal.
func ValidateHarness(h Harness) []Issue {
	var issues []Issue
	issues = append(issues, validateEngines(h.Engines)...)
	issues = append(issues, validateLoad(h.Load)...)
	issues = append(issues, validateBenchmark(h.Benchmark)...)
	issues = append(issues, validateBackup(h.Backup)...)
	issues = append(issues, validateOutputs(h)...)
	return issues
}

func validateEngines(es []Engine) []Issue {
	var issues []Issue
	if len(es) == 0 {
		return append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "engines",
			Message:  "no engines configured; only `schema emit` will work",
		})
	}
	known := make(map[string]struct{}, len(KnownKinds))
	for _, k := range KnownKinds {
		known[k] = struct{}{}
	}
	seen := map[string]int{}
	for i, e := range es {
		path := fmt.Sprintf("engines[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			issues = append(issues, Issue{SeverityError, path + ".name", "engine name must not be empty"})
		} else if j, dup := seen[e.Name]; dup {
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("duplicate engine name %q (also engines[%d])", e.Name, j)})
		} else {
			seen[e.Name] = i
		}
		if strings.TrimSpace(e.Kind) == "" {
			issues = append(issues, Issue{SeverityError, path + ".kind", "engine kind must not be empty"})
		} else if _, ok := known[e.Kind]; !ok {
			issues = append(issues, Issue{SeverityError, path + ".kind", fmt.Sprintf("unknown engine kind %q (known: %s)", e.Kind, strings.Join(KnownKinds, ", "))})
		}
		if strings.TrimSpace(e.DSN) == "" {
			issues = append(issues, Issue{SeverityError, path + ".dsn", "dsn must not be empty"})
		}
		if strings.TrimSpace(e.Table) == "" {
			issues = append(issues, Issue{SeverityError, path + ".table", "table must be set explicitly; names are never guessed"})
		}
		if e.Kind == "mongodb" && strings.TrimSpace(e.Database) == "" {
			issues = append(issues, Issue{SeverityError, path + ".database", "mongodb engines need a database"})
		}
	}
	return issues
}

func validateLoad(l LoadConfig) []Issue {
	var issues []Issue
	if l.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "load.batch_size", "batch_size must be > 0"})
	} else if l.BatchSize > 1_000_000 {
		issues = append(issues, Issue{SeverityWarning, "load.batch_size", "batch_size above 1,000,000 defeats bounded memory"})
	}
	if l.MaxFailures < 0 {
		issues = append(issues, Issue{SeverityError, "load.max_failures", "max_failures must be >= 0"})
	}
	if l.MaxRatio < 0 || l.MaxRatio > 1 {
		issues = append(issues, Issue{SeverityError, "load.max_ratio", "max_ratio must be within [0, 1]"})
	}
	if l.MaxRatio > 0 && l.MaxFailures > 0 {
		issues = append(issues, Issue{SeverityWarning, "load.max_failures", "ignored because max_ratio is set"})
	}
	if l.SampleLimit < 0 {
		issues = append(issues, Issue{SeverityError, "load.sample_limit", "sample_limit must be >= 0"})
	}
	if c := l.Parser.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{SeverityError, "load.parser.comma", "comma must be a single character"})
	}
	return issues
}

var knownCases = map[string]struct{}{
	"count-all": {}, "count-by-sex": {}, "filter-by-sex": {}, "avg-age-by-sex": {}, "sorted-limit-by-dob": {},
}

func validateBenchmark(b BenchmarkConfig) []Issue {
	var issues []Issue
	if b.Repeat < 1 {
		issues = append(issues, Issue{SeverityError, "benchmark.repeat", "repeat must be >= 1"})
	}
	for i, c := range b.Cases {
		if _, ok := knownCases[c]; !ok {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("benchmark.cases[%d]", i), fmt.Sprintf("unknown case %q", c)})
		}
	}
	if b.CaseTimeout < 0 {
		issues = append(issues, Issue{SeverityError, "benchmark.case_timeout", "case_timeout must be >= 0"})
	}
	return issues
}

func validateBackup(b BackupConfig) []Issue {
	var issues []Issue
	if b.Keep < 0 {
		issues = append(issues, Issue{SeverityError, "backup.keep", "keep must be >= 0"})
	}
	if b.Cron != "" {
		if _, err := cron.ParseStandard(b.Cron); err != nil {
			issues = append(issues, Issue{SeverityError, "backup.cron", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	return issues
}

func validateOutputs(h Harness) []Issue {
	var issues []Issue
	switch h.Reports.Format {
	case "yaml", "json":
	default:
		issues = append(issues, Issue{SeverityError, "reports.format", fmt.Sprintf("unknown report format %q (yaml|json)", h.Reports.Format)})
	}
	switch h.Metrics.Backend {
	case "", "none", "prom", "datadog":
	default:
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", h.Metrics.Backend)})
	}
	if h.Metrics.Backend == "prom" && h.Metrics.PushgatewayURL == "" {
		issues = append(issues, Issue{SeverityWarning, "metrics.pushgateway_url", "prom backend without pushgateway_url; pushing to http://localhost:9091"})
	}
	if _, err := log.ParseLevel(h.Log.Level); err != nil {
		issues = append(issues, Issue{SeverityError, "log.level", err.Error()})
	}
	switch h.Log.Format {
	case "text", "json", "color":
	default:
		issues = append(issues, Issue{SeverityError, "log.format", fmt.Sprintf("unknown log format %q", h.Log.Format)})
	}
	return issues
}
