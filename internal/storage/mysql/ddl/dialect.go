// Package ddl translates logical schemas into MySQL DDL.
package ddl

import (
	"fmt"

	gddl "dbbench/internal/ddl"
	"dbbench/internal/schema"
)

// Kind is the engine kind this dialect registers under.
const Kind = "mysql"

const (
	maxEnumMembers = 65535
	maxEnumLabel   = 255
	tableOptions   = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
)

func init() { schema.RegisterDialect(Kind, Dialect{}) }

// Dialect implements schema.Dialect for MySQL (InnoDB).
type Dialect struct{}

func (Dialect) Family() schema.Family { return schema.Row }

// Emit returns a single CREATE TABLE IF NOT EXISTS; secondary indexes are
// declared inline since MySQL lacks CREATE INDEX IF NOT EXISTS.
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
		cols = append(cols, gddl.ColumnDef{
			Name:       f.Name,
			SQLType:    typ,
			Nullable:   f.Nullable,
			PrimaryKey: f.Type == schema.Identifier,
			Unique:     f.Unique,
		})
		if f.Indexed {
			idx = append(idx, fmt.Sprintf("INDEX %s (%s)", QuoteIdent(gddl.IndexName(table, f.Name)), QuoteIdent(f.Name)))
		}
	}
	stmt, err := BuildCreateTableSQL(gddl.TableDef{FQN: table, Columns: cols, Constraints: idx})
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

// MapType maps a field onto a MySQL column type.
//
//	Identifier -> CHAR(n)
//	ShortText  -> VARCHAR(n), or TEXT when unbounded
//	Enum       -> ENUM('a', 'b', ...)
//	LongText   -> TEXT
//	Date       -> DATE
func MapType(f schema.FieldSpec) (string, error) {
	switch f.Type {
	case schema.Identifier:
		return fmt.Sprintf("CHAR(%d)", f.Length), nil
	case schema.ShortText:
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length), nil
		}
		return "TEXT", nil
	case schema.Enum:
		if len(f.Values) > maxEnumMembers {
			return "", schema.Untranslatable(Kind, f, "%d enum members exceed the limit of %d", len(f.Values), maxEnumMembers)
		}
		if f.EnumMaxLen() > maxEnumLabel {
			return "", schema.Untranslatable(Kind, f, "enum label longer than %d characters", maxEnumLabel)
		}
		return "ENUM(" + gddl.QuoteLiterals(f.Values) + ")", nil
	case schema.LongText:
		return "TEXT", nil
	case schema.Date:
		return "DATE", nil
	}
	return "", schema.Untranslatable(Kind, f, "unsupported semantic type")
}

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS with backtick
// quoting and InnoDB table options.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	t.Quote = QuoteFQN
	t.IfNotExists = true
	t.Options = tableOptions
	return gddl.BuildCreateTableSQL(t)
}

// QuoteIdent quotes one identifier segment with backticks.
func QuoteIdent(id string) string { return gddl.QuoteIdent(id, "`", "`") }

// QuoteFQN quotes a possibly database-qualified name.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, "`", "`") }
