// Package ddl translates logical schemas into ClickHouse DDL.
//
// Tables use the MergeTree engine ordered by the primary identifier.
// Nullability is part of the type (Nullable(T)), so no NOT NULL is rendered.
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	gddl "dbbench/internal/ddl"
	"dbbench/internal/schema"
)

// Kind is the engine kind this dialect registers under.
const Kind = "clickhouse"

const (
	maxEnum8  = 127
	maxEnum16 = 32767
)

func init() { schema.RegisterDialect(Kind, Dialect{}) }

// Dialect implements schema.Dialect for ClickHouse.
type Dialect struct{}

func (Dialect) Family() schema.Family { return schema.Columnar }

func (Dialect) Emit(table string, s schema.LogicalSchema) ([]string, error) {
	pk, ok := s.PrimaryKey()
	if !ok {
		return nil, &schema.TranslationError{Engine: Kind, Reason: "MergeTree needs an Identifier field for ORDER BY"}
	}
	cols := make([]gddl.ColumnDef, 0, len(s.Fields))
	var idx []string
	for _, f := range s.Fields {
		if err := schema.CheckField(Kind, f); err != nil {
			return nil, err
		}
		typ, err := MapType(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, gddl.ColumnDef{
			Name:       f.Name,
			SQLType:    typ,
			Nullable:   f.Nullable,
			PrimaryKey: f.Name == pk.Name,
		})
		if f.Indexed && f.Name != pk.Name {
			idx = append(idx, skipIndex(table, f))
		}
	}
	stmt, err := BuildCreateTableSQL(gddl.TableDef{
		FQN:         table,
		Columns:     cols,
		Constraints: idx,
		Options:     "ENGINE = MergeTree ORDER BY (" + QuoteIdent(pk.Name) + ")",
	})
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

// MapType maps a field onto a ClickHouse column type.
//
//	Identifier -> FixedString(n)
//	ShortText  -> String, LowCardinality(String) for low-cardinality hints
//	Enum       -> Enum8, or Enum16 above 127 values
//	LongText   -> String
//	Date       -> Date32 (covers 1900-2299; Date starts at 1970)
//
// Nullable fields are wrapped in Nullable(T).
func MapType(f schema.FieldSpec) (string, error) {
	var typ string
	switch f.Type {
	case schema.Identifier:
		typ = fmt.Sprintf("FixedString(%d)", f.Length)
	case schema.ShortText:
		typ = "String"
		if f.Cardinality == schema.CardinalityLow {
			if f.Nullable {
				return "LowCardinality(Nullable(String))", nil
			}
			return "LowCardinality(String)", nil
		}
	case schema.Enum:
		var err error
		if typ, err = enumType(f); err != nil {
			return "", err
		}
	case schema.LongText:
		typ = "String"
	case schema.Date:
		typ = "Date32"
	default:
		return "", schema.Untranslatable(Kind, f, "unsupported semantic type")
	}
	if f.Nullable {
		typ = "Nullable(" + typ + ")"
	}
	return typ, nil
}

// enumType picks the smallest enum width that holds all values, numbered
// from 1 in declaration order.
func enumType(f schema.FieldSpec) (string, error) {
	n := len(f.Values)
	width := "Enum8"
	switch {
	case n > maxEnum16:
		return "", schema.Untranslatable(Kind, f, "%d enum values exceed Enum16 capacity (%d)", n, maxEnum16)
	case n > maxEnum8:
		width = "Enum16"
	}
	parts := make([]string, n)
	for i, v := range f.Values {
		parts[i] = gddl.QuoteLiteral(v) + " = " + strconv.Itoa(i+1)
	}
	return width + "(" + strings.Join(parts, ", ") + ")", nil
}

// skipIndex declares a data-skipping index: a set index for enums, minmax
// for everything else.
func skipIndex(table string, f schema.FieldSpec) string {
	typ := "minmax"
	if f.Type == schema.Enum {
		typ = fmt.Sprintf("set(%d)", len(f.Values))
	}
	return fmt.Sprintf("INDEX %s %s TYPE %s GRANULARITY 4", QuoteIdent(gddl.IndexName(table, f.Name)), QuoteIdent(f.Name), typ)
}

// BuildCreateTableSQL renders a ClickHouse CREATE TABLE IF NOT EXISTS. The
// caller supplies the ENGINE clause in t.Options.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	t.Quote = QuoteFQN
	t.IfNotExists = true
	t.OmitNullability = true
	t.OmitPrimaryKey = true
	return gddl.BuildCreateTableSQL(t)
}

// QuoteIdent quotes one identifier with backticks.
func QuoteIdent(id string) string { return gddl.QuoteIdent(id, "`", "`") }

// QuoteFQN quotes a possibly database-qualified name.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, "`", "`") }
