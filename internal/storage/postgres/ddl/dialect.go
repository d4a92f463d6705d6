// Package ddl translates logical schemas into Postgres DDL.
//
// Enum fields become named enum types created ahead of the table with a
// duplicate_object guard, so the emitted script is idempotent like the
// CREATE TABLE IF NOT EXISTS that follows it.
package ddl

import (
	"fmt"

	gddl "dbbench/internal/ddl"
	"dbbench/internal/schema"
)

// Kind is the engine kind this dialect registers under.
const Kind = "postgres"

// maxLabel is NAMEDATALEN-1, the longest enum label Postgres accepts.
const maxLabel = 63

func init() { schema.RegisterDialect(Kind, Dialect{}) }

// Dialect implements schema.Dialect for Postgres.
type Dialect struct{}

func (Dialect) Family() schema.Family { return schema.Row }

// Emit returns the enum type statements, the CREATE TABLE and one CREATE
// INDEX per indexed field, in that order.
func (Dialect) Emit(table string, s schema.LogicalSchema) ([]string, error) {
	var (
		stmts []string
		cols  = make([]gddl.ColumnDef, 0, len(s.Fields))
		idx   []string
	)
	for _, f := range s.Fields {
		if err := schema.CheckField(Kind, f); err != nil {
			return nil, err
		}
		typ, err := MapType(table, f)
		if err != nil {
			return nil, err
		}
		if f.Type == schema.Enum {
			stmts = append(stmts, createEnumType(EnumTypeName(table, f.Name), f.Values))
		}
		cols = append(cols, gddl.ColumnDef{
			Name:       f.Name,
			SQLType:    typ,
			Nullable:   f.Nullable,
			PrimaryKey: f.Type == schema.Identifier,
			Unique:     f.Unique,
		})
		if f.Indexed {
			idx = append(idx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				QuoteIdent(gddl.IndexName(table, f.Name)), QuoteFQN(table), QuoteIdent(f.Name)))
		}
	}
	create, err := BuildCreateTableSQL(gddl.TableDef{FQN: table, Columns: cols})
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, create)
	return append(stmts, idx...), nil
}

// MapType maps a field onto a Postgres column type.
//
//	Identifier -> CHAR(n)
//	ShortText  -> VARCHAR(n), or TEXT when unbounded
//	Enum       -> named enum type (see EnumTypeName)
//	LongText   -> TEXT
//	Date       -> DATE
func MapType(table string, f schema.FieldSpec) (string, error) {
	switch f.Type {
	case schema.Identifier:
		return fmt.Sprintf("CHAR(%d)", f.Length), nil
	case schema.ShortText:
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length), nil
		}
		return "TEXT", nil
	case schema.Enum:
		for _, v := range f.Values {
			if len(v) > maxLabel {
				return "", schema.Untranslatable(Kind, f, "enum label %q longer than %d bytes", v, maxLabel)
			}
		}
		return QuoteFQN(EnumTypeName(table, f.Name)), nil
	case schema.LongText:
		return "TEXT", nil
	case schema.Date:
		return "DATE", nil
	}
	return "", schema.Untranslatable(Kind, f, "unsupported semantic type")
}

// EnumTypeName names the enum type backing field of table, in the table's
// schema: "public.people" + "sex" -> "public.people_sex".
func EnumTypeName(table, field string) string {
	return table + "_" + field
}

// DropStatements returns the statements that remove table and the enum types
// it owns.
func DropStatements(table string, s schema.LogicalSchema) []string {
	out := []string{"DROP TABLE IF EXISTS " + QuoteFQN(table)}
	for _, f := range s.Fields {
		if f.Type == schema.Enum {
			out = append(out, "DROP TYPE IF EXISTS "+QuoteFQN(EnumTypeName(table, f.Name)))
		}
	}
	return out
}

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement with
// double-quoted identifiers.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	t.Quote = QuoteFQN
	t.IfNotExists = true
	return gddl.BuildCreateTableSQL(t)
}

func createEnumType(name string, values []string) string {
	return fmt.Sprintf("DO $$ BEGIN CREATE TYPE %s AS ENUM (%s); EXCEPTION WHEN duplicate_object THEN NULL; END $$",
		QuoteFQN(name), gddl.QuoteLiterals(values))
}

// QuoteIdent quotes one identifier segment.
func QuoteIdent(id string) string { return gddl.QuoteIdent(id, `"`, `"`) }

// QuoteFQN quotes a possibly schema-qualified name segment by segment.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, `"`, `"`) }
