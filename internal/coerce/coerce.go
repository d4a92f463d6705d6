// Package coerce converts raw CSV cells into engine-ready values according to
// a logical schema.
//
// Design goals:
//   - Avoid per-row lookups; compile a per-column plan once per (schema, engine).
//   - Never fail a batch because of one record: a bad cell yields a Failure
//     value, and the caller decides what to do with it.
//   - Keep the hot path allocation-light: zero-alloc date parsing and an ASCII
//     fast path around Unicode normalization.
package coerce

import (
	"fmt"
	"strings"
	"time"

	"dbbench/internal/schema"
)

// SourceRecord is one raw CSV line, positionally aligned to the schema.
type SourceRecord struct {
	Line  int64
	Cells []string
}

// Record is a coerced row ready for BulkIngest. Values are aligned with the
// schema's columns.
type Record struct {
	Line   int64
	Values []any
}

// Failure describes why one record could not be coerced.
type Failure struct {
	Line     int64  `json:"line" yaml:"line"`
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	RawValue string `json:"raw_value" yaml:"raw_value"`
	Reason   string `json:"reason" yaml:"reason"`
}

func (f Failure) String() string {
	if f.Field == "" {
		return fmt.Sprintf("line %d: %s", f.Line, f.Reason)
	}
	return fmt.Sprintf("line %d: field %s=%q: %s", f.Line, f.Field, f.RawValue, f.Reason)
}

// Plan is a compiled coercion plan. A Plan keeps per-load state (the
// duplicate identifier set and normalizer buffers) and must not be shared
// between goroutines.
type Plan struct {
	schema schema.LogicalSchema
	cols   []column
	ids    *IDSet
	idCol  int
}

type column struct {
	name   string
	coerce func(dst *any, s string) (reason string, ok bool)
}

// Compile builds a plan for s targeting the engine kind. Dates become
// time.Time unless the kind's dialect stores them as text.
func Compile(s schema.LogicalSchema, kind string) (*Plan, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	dateLayout := ""
	if d, ok := schema.LookupDialect(kind); ok {
		if td, ok := d.(schema.TextDates); ok {
			dateLayout = td.DateLayout()
		}
	}

	p := &Plan{schema: s, cols: make([]column, len(s.Fields)), idCol: -1}
	short := newNormalizer(false)
	long := newNormalizer(true)

	for i, f := range s.Fields {
		f := f
		c := column{name: f.Name}
		switch f.Type {
		case schema.Identifier:
			if p.idCol < 0 {
				p.idCol = i
				p.ids = NewIDSet(0)
			}
			c.coerce = func(dst *any, s string) (string, bool) {
				if f.Length > 0 && len(s) > f.Length {
					return fmt.Sprintf("identifier longer than %d bytes", f.Length), false
				}
				*dst = s
				return "", true
			}
		case schema.ShortText, schema.LongText:
			n := short
			if f.Type == schema.LongText {
				n = long
			}
			c.coerce = func(dst *any, s string) (string, bool) {
				v := n.normalize(s)
				if f.Length > 0 && runeLen(v) > f.Length {
					return fmt.Sprintf("longer than %d characters", f.Length), false
				}
				*dst = v
				return "", true
			}
		case schema.Enum:
			values := make(map[string]string, len(f.Values))
			for _, v := range f.Values {
				values[v] = v
			}
			want := strings.Join(f.Values, ", ")
			c.coerce = func(dst *any, s string) (string, bool) {
				v, ok := values[s]
				if !ok {
					return "not one of [" + want + "]", false
				}
				*dst = v
				return "", true
			}
		case schema.Date:
			c.coerce = func(dst *any, s string) (string, bool) {
				t, ok := ParseMDY(s)
				if !ok {
					return "not a valid month/day/year date", false
				}
				if dateLayout != "" {
					*dst = t.Format(dateLayout)
				} else {
					*dst = t
				}
				return "", true
			}
		default:
			return nil, schema.Untranslatable(kind, f, "no coercion for semantic type")
		}
		p.cols[i] = c
	}
	return p, nil
}

// Columns returns the target column names in order.
func (p *Plan) Columns() []string { return p.schema.Columns() }

// Coerce converts src into a Record. dst is reused as the value slice when it
// has enough capacity. On failure the returned Failure describes the first
// offending cell and the Record must be discarded.
//
// Cells are trimmed of surrounding whitespace. An empty cell is NULL for a
// nullable field and a failure otherwise. A repeated identifier within the
// lifetime of the plan is a failure.
func (p *Plan) Coerce(src SourceRecord, dst []any) (Record, *Failure) {
	if len(src.Cells) != len(p.cols) {
		return Record{}, &Failure{
			Line:     src.Line,
			RawValue: strings.Join(src.Cells, ","),
			Reason:   fmt.Sprintf("expected %d fields, got %d", len(p.cols), len(src.Cells)),
		}
	}
	if cap(dst) < len(p.cols) {
		dst = make([]any, len(p.cols))
	}
	dst = dst[:len(p.cols)]

	for i, c := range p.cols {
		raw := src.Cells[i]
		s := strings.TrimSpace(raw)
		if s == "" {
			if !p.schema.Fields[i].Nullable {
				return Record{}, &Failure{Line: src.Line, Field: c.name, RawValue: raw, Reason: "required value is empty"}
			}
			dst[i] = nil
			continue
		}
		if reason, ok := c.coerce(&dst[i], s); !ok {
			return Record{}, &Failure{Line: src.Line, Field: c.name, RawValue: raw, Reason: reason}
		}
	}

	// Duplicates are checked last so a record rejected for another reason
	// does not reserve its identifier.
	if p.ids != nil {
		id := dst[p.idCol].(string)
		if !p.ids.Add(id) {
			return Record{}, &Failure{Line: src.Line, Field: p.cols[p.idCol].name, RawValue: src.Cells[p.idCol], Reason: "duplicate identifier"}
		}
	}
	return Record{Line: src.Line, Values: dst}, nil
}

// ParseMDY is a zero-allocation parser for month/day/year dates with one- or
// two-digit month and day and a four-digit year ("1/2/2006" or "01/02/2006").
// It rejects impossible calendar dates such as 2/30/2020 or 13/45/2020.
func ParseMDY(s string) (time.Time, bool) {
	mon, rest, ok := leadingNumber(s, 2)
	if !ok || len(rest) == 0 || rest[0] != '/' {
		return time.Time{}, false
	}
	day, rest, ok := leadingNumber(rest[1:], 2)
	if !ok || len(rest) == 0 || rest[0] != '/' {
		return time.Time{}, false
	}
	rest = rest[1:]
	if len(rest) != 4 {
		return time.Time{}, false
	}
	year, tail, ok := leadingNumber(rest, 4)
	if !ok || len(tail) != 0 {
		return time.Time{}, false
	}
	if mon < 1 || mon > 12 || day < 1 || day > daysIn(time.Month(mon), year) {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC), true
}

// leadingNumber reads 1..max ASCII digits from the front of s.
func leadingNumber(s string, max int) (n int, rest string, ok bool) {
	i := 0
	for ; i < len(s) && i < max; i++ {
		d := s[i] - '0'
		if d > 9 {
			break
		}
		n = n*10 + int(d)
	}
	if i == 0 {
		return 0, s, false
	}
	return n, s[i:], true
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}
