// Package ddl translates logical schemas into SQLite DDL.
//
// SQLite has no enum or fixed-length types, so both are enforced with CHECK
// constraints. Dates are declared DATE and stored as ISO-8601 text
// (YYYY-MM-DD), which keeps lexical order equal to chronological order.
package ddl

import (
	"fmt"

	gddl "dbbench/internal/ddl"
	"dbbench/internal/schema"
)

// Kind is the engine kind this dialect registers under.
const Kind = "sqlite"

// DateLayout is the storage format for Date fields.
const DateLayout = "2006-01-02"

func init() { schema.RegisterDialect(Kind, Dialect{}) }

// Dialect implements schema.Dialect for SQLite.
type Dialect struct{}

func (Dialect) Family() schema.Family { return schema.Row }

// DateLayout implements schema.TextDates.
func (Dialect) DateLayout() string { return DateLayout }

func (Dialect) Emit(table string, s schema.LogicalSchema) ([]string, error) {
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
		c := gddl.ColumnDef{
			Name:       f.Name,
			SQLType:    typ,
			Nullable:   f.Nullable,
			PrimaryKey: f.Type == schema.Identifier,
			Unique:     f.Unique,
		}
		switch f.Type {
		case schema.Identifier:
			c.Check = fmt.Sprintf("length(%s) <= %d", QuoteIdent(f.Name), f.Length)
		case schema.Enum:
			c.Check = fmt.Sprintf("%s IN (%s)", QuoteIdent(f.Name), gddl.QuoteLiterals(f.Values))
		}
		cols = append(cols, c)
		if f.Indexed {
			idx = append(idx, createIndex(table, f.Name))
		}
	}
	create, err := BuildCreateTableSQL(gddl.TableDef{FQN: table, Columns: cols})
	if err != nil {
		return nil, err
	}
	return append([]string{create}, idx...), nil
}

// MapType maps a field onto a SQLite declared type.
//
//	Identifier -> CHAR(n)     (TEXT affinity, length checked)
//	ShortText  -> VARCHAR(n)  (TEXT affinity)
//	Enum       -> TEXT        (membership checked)
//	LongText   -> TEXT
//	Date       -> DATE        (ISO-8601 text)
func MapType(f schema.FieldSpec) (string, error) {
	switch f.Type {
	case schema.Identifier:
		return fmt.Sprintf("CHAR(%d)", f.Length), nil
	case schema.ShortText:
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length), nil
		}
		return "TEXT", nil
	case schema.Enum, schema.LongText:
		return "TEXT", nil
	case schema.Date:
		return "DATE", nil
	}
	return "", schema.Untranslatable(Kind, f, "unsupported semantic type")
}

// createIndex places the index in the table's schema; SQLite rejects a
// qualified table name in the ON clause.
func createIndex(table, column string) string {
	name := gddl.IndexName(table, column)
	if base := gddl.BaseName(table); base != table {
		name = table[:len(table)-len(base)] + name
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		QuoteFQN(name), QuoteIdent(gddl.BaseName(table)), QuoteIdent(column))
}

// BuildCreateTableSQL returns a SQLite CREATE TABLE IF NOT EXISTS statement
// with double-quoted identifiers. A dotted FQN (e.g. "main.events") has each
// segment quoted individually.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	t.Quote = QuoteFQN
	t.IfNotExists = true
	return gddl.BuildCreateTableSQL(t)
}

// QuoteIdent quotes one identifier segment.
func QuoteIdent(id string) string { return gddl.QuoteIdent(id, `"`, `"`) }

// QuoteFQN quotes a possibly schema-qualified name.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, `"`, `"`) }
