// Package probe samples the head of a CSV source and dry-runs it through the
// coercion plan for an engine kind. Nothing is written anywhere; the summary
// shows which fields would fail and why before a real load is attempted.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dbbench/internal/coerce"
	"dbbench/internal/config"
	"dbbench/internal/datasource"
	"dbbench/internal/datasource/httpds"
	"dbbench/internal/parser/csv"
	"dbbench/internal/schema"
)

// DefaultRows is the sample size when Options.Rows is not positive.
const DefaultRows = 1000

// malformedField labels rows the CSV reader could not split.
const malformedField = "(row)"

// Options control the sampling.
type Options struct {
	// Location is a local path (optionally .gz/.zst) or an http(s) URL.
	Location string
	// Kind selects the engine kind whose coercion plan is used.
	Kind string
	// Rows bounds the number of data rows read.
	Rows int
	// SampleLimit bounds Summary.Samples; zero keeps none.
	SampleLimit int
	Parser      config.Options
	HTTP        httpds.Config
}

// FieldStats counts failures attributed to one field.
type FieldStats struct {
	Field    string `yaml:"field" json:"field"`
	Failures int64  `yaml:"failures" json:"failures"`
	// Example is the first raw value that failed.
	Example string `yaml:"example,omitempty" json:"example,omitempty"`
	Reason  string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Summary is the outcome of one probe.
type Summary struct {
	Source string `yaml:"source" json:"source"`
	Kind   string `yaml:"kind" json:"kind"`
	Rows   int64  `yaml:"rows" json:"rows"`
	Valid  int64  `yaml:"valid" json:"valid"`
	Failed int64  `yaml:"failed" json:"failed"`
	// Truncated is true when the source has rows past the sample.
	Truncated bool             `yaml:"truncated" json:"truncated"`
	Fields    []FieldStats     `yaml:"fields,omitempty" json:"fields,omitempty"`
	Samples   []coerce.Failure `yaml:"samples,omitempty" json:"samples,omitempty"`
}

// FailureRatio is Failed/Rows, or zero for an empty sample.
func (s *Summary) FailureRatio() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Rows)
}

// Run reads up to opt.Rows records and coerces each one. Source, header and
// plan errors are returned; per-row problems only land in the summary.
func Run(ctx context.Context, opt Options) (*Summary, error) {
	if opt.Rows <= 0 {
		opt.Rows = DefaultRows
	}
	if _, ok := schema.LookupDialect(opt.Kind); !ok {
		return nil, fmt.Errorf("probe: unknown engine kind %q (known: %v)", opt.Kind, schema.Dialects())
	}
	s := schema.People()
	plan, err := coerce.Compile(s, opt.Kind)
	if err != nil {
		return nil, err
	}
	rc, err := datasource.Open(ctx, opt.Location, opt.HTTP)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	src, err := csv.NewReader(rc, plan.Columns(), opt.Parser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opt.Location, err)
	}

	sum := &Summary{Source: opt.Location, Kind: opt.Kind}
	byField := map[string]*FieldStats{}
	record := func(f coerce.Failure) {
		sum.Failed++
		name := f.Field
		if name == "" {
			name = malformedField
		}
		fs, ok := byField[name]
		if !ok {
			fs = &FieldStats{Field: name, Example: f.RawValue, Reason: f.Reason}
			byField[name] = fs
		}
		fs.Failures++
		if len(sum.Samples) < opt.SampleLimit {
			sum.Samples = append(sum.Samples, f)
		}
	}

	dst := make([]any, len(plan.Columns()))
	for sum.Rows < int64(opt.Rows) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *csv.RowError
		if errors.As(err, &rowErr) {
			sum.Rows++
			record(coerce.Failure{Line: rowErr.Line, RawValue: rowErr.Raw, Reason: rowErr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", opt.Location, err)
		}
		sum.Rows++
		if _, f := plan.Coerce(sr, dst); f != nil {
			record(*f)
			continue
		}
		sum.Valid++
	}
	if sum.Rows == int64(opt.Rows) {
		if _, err := src.Next(); !errors.Is(err, io.EOF) {
			sum.Truncated = true
		}
	}

	// Fields in schema order, row-level problems last.
	for _, name := range append(s.Columns(), malformedField) {
		if fs, ok := byField[name]; ok {
			sum.Fields = append(sum.Fields, *fs)
		}
	}
	return sum, nil
}
