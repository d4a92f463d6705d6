// Package schema holds the logical description of the people dataset and
// the registry of engine dialects that translate it into native DDL.
package schema

import (
	"fmt"
	"strings"
)

// SemanticType is the engine-independent meaning of a field.
type SemanticType uint8

const (
	// Identifier is a fixed-length key; the first Identifier is the primary key.
	Identifier SemanticType = iota + 1
	// ShortText is bounded variable-length text.
	ShortText
	// Enum is one of a declared, case-sensitive value set.
	Enum
	// LongText is unbounded text.
	LongText
	// Date is a calendar date without time of day.
	Date
)

func (t SemanticType) String() string {
	switch t {
	case Identifier:
		return "Identifier"
	case ShortText:
		return "ShortText"
	case Enum:
		return "Enum"
	case LongText:
		return "LongText"
	case Date:
		return "Date"
	}
	return fmt.Sprintf("SemanticType(%d)", uint8(t))
}

// Cardinality is a hint about the number of distinct values a field holds.
// Dialects use it to pick categorical storage and secondary indexes.
type Cardinality uint8

const (
	CardinalityUnknown Cardinality = iota
	CardinalityLow
	CardinalityHigh
)

// Family groups engines by storage model.
type Family string

const (
	Row      Family = "row"
	Columnar Family = "columnar"
	Document Family = "document"
)

// FieldSpec describes one field of a LogicalSchema.
type FieldSpec struct {
	Name string
	Type SemanticType
	// Length is the fixed length of an Identifier or the maximum length of a
	// ShortText. Zero means unbounded for ShortText.
	Length      int
	Values      []string // Enum members, in declaration order.
	Nullable    bool
	Unique      bool
	Cardinality Cardinality
	// Indexed requests a secondary index where the engine has them.
	Indexed bool
}

// LogicalSchema is an ordered list of fields. Field order is the column order
// of every emitted DDL and of the CSV input.
type LogicalSchema struct {
	Name   string
	Fields []FieldSpec
}

// Columns returns field names in declaration order.
func (s LogicalSchema) Columns() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Field returns the named field and its position.
func (s LogicalSchema) Field(name string) (FieldSpec, int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return FieldSpec{}, -1, false
}

// PrimaryKey returns the first Identifier field.
func (s LogicalSchema) PrimaryKey() (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Type == Identifier {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate checks engine-independent structure: non-empty unique names and
// known types. Type-specific parameters (enum values, lengths) are checked by
// each dialect so the failure names the engine.
func (s LogicalSchema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %q: no fields", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("schema %q: field %d has empty name", s.Name, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("schema %q: duplicate field %q", s.Name, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// EnumMaxLen returns the longest value length of an Enum field, in bytes.
func (f FieldSpec) EnumMaxLen() int {
	n := 0
	for _, v := range f.Values {
		if len(v) > n {
			n = len(v)
		}
	}
	return n
}

// People is the canonical dataset shape: user_id, username, sex, email,
// phone, dob, job_title.
func People() LogicalSchema {
	return LogicalSchema{
		Name: "people",
		Fields: []FieldSpec{
			{Name: "user_id", Type: Identifier, Length: 15, Unique: true, Cardinality: CardinalityHigh},
			{Name: "username", Type: ShortText, Length: 100, Cardinality: CardinalityHigh},
			{Name: "sex", Type: Enum, Values: []string{"Male", "Female"}, Cardinality: CardinalityLow, Indexed: true},
			{Name: "email", Type: ShortText, Length: 255, Cardinality: CardinalityHigh},
			{Name: "phone", Type: ShortText, Length: 32, Nullable: true, Cardinality: CardinalityHigh},
			{Name: "dob", Type: Date, Indexed: true},
			{Name: "job_title", Type: LongText, Nullable: true},
		},
	}
}
