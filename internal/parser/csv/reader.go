// Package csv reads the fixed-shape people CSV as a lazy sequence of source
// records. It never buffers the whole file; each Next call parses one line.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"dbbench/internal/coerce"
	"dbbench/internal/config"
)

// RowError reports a line that could not be split into fields (bad quoting,
// wrong width). It is a per-record failure; the reader stays usable.
type RowError struct {
	Line int64
	Raw  string
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("csv line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Reader yields SourceRecords aligned to a target column order.
type Reader struct {
	cr      *csv.Reader
	columns []string
	colIx   []int // colIx[target] = source index
	width   int   // expected source width
}

// NewReader wraps src and, when a header is expected, reads it and maps
// source columns onto columns by name.
//
// Options (all optional):
//   - has_header (bool; default true)
//   - comma (string; first rune used; default ',')
//   - lazy_quotes (bool; default false)
//   - header_map (map; source header -> canonical column name)
//
// Header names are matched after BOM stripping, trimming, lowercasing and
// replacing spaces with underscores. A target column missing from the header
// is an error.
func NewReader(src io.Reader, columns []string, opt config.Options) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	r := &Reader{cr: cr, columns: columns, colIx: make([]int, len(columns)), width: len(columns)}
	for i := range r.colIx {
		r.colIx[i] = i
	}
	if !opt.Bool("has_header", true) {
		return r, nil
	}

	hdr, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	hm := opt.StringMap("header_map")
	srcToIdx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		srcToIdx[headerKey(h, hm)] = i
	}
	var missing []string
	for t, target := range columns {
		si, ok := srcToIdx[target]
		if !ok {
			missing = append(missing, target)
			continue
		}
		r.colIx[t] = si
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing columns %s (got %s)", strings.Join(missing, ", "), strings.Join(hdr, ","))
	}
	r.width = len(hdr)
	return r, nil
}

// Next returns the next record. It returns io.EOF at the end of input and a
// *RowError for a malformed line; other errors come from the underlying
// reader and are fatal.
func (r *Reader) Next() (coerce.SourceRecord, error) {
	rec, err := r.cr.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return coerce.SourceRecord{}, &RowError{Line: int64(pe.StartLine), Err: pe.Err}
		}
		return coerce.SourceRecord{}, err
	}
	line, _ := r.cr.FieldPos(0)
	if len(rec) != r.width {
		return coerce.SourceRecord{}, &RowError{
			Line: int64(line),
			Raw:  strings.Join(rec, string(r.cr.Comma)),
			Err:  fmt.Errorf("expected %d fields, got %d", r.width, len(rec)),
		}
	}
	cells := make([]string, len(r.columns))
	for t, si := range r.colIx {
		cells[t] = rec[si]
	}
	return coerce.SourceRecord{Line: int64(line), Cells: cells}, nil
}

// headerKey maps a source header cell to the column name it feeds: an
// explicit header_map entry wins, otherwise the trimmed name is lowercased
// with spaces turned into underscores.
func headerKey(h string, hm map[string]string) string {
	h = strings.TrimSpace(h)
	if mapped, ok := hm[h]; ok {
		return mapped
	}
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}
