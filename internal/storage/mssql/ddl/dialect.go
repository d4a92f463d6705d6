// Package ddl translates logical schemas into SQL Server DDL.
//
// The builder here:
//   - Uses SQL Server-style identifier quoting: [schema].[table], [col].
//   - Wraps CREATE TABLE in an IF OBJECT_ID(...) IS NULL guard since T-SQL
//     does not support CREATE TABLE IF NOT EXISTS.
//   - Has no enum type, so Enum fields become VARCHAR with a CHECK constraint.
//   - Declares secondary indexes inline.
package ddl

import (
	"fmt"

	gddl "dbbench/internal/ddl"
	"dbbench/internal/schema"
)

// Kind is the engine kind this dialect registers under.
const Kind = "mssql"

// maxNVarChar is the largest explicit NVARCHAR length; longer fields use MAX.
const maxNVarChar = 4000

func init() { schema.RegisterDialect(Kind, Dialect{}) }

// Dialect implements schema.Dialect for SQL Server.
type Dialect struct{}

func (Dialect) Family() schema.Family { return schema.Row }

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
		if f.Type == schema.Enum {
			c.Check = fmt.Sprintf("%s IN (%s)", QuoteIdent(f.Name), gddl.QuoteLiterals(f.Values))
		}
		cols = append(cols, c)
		if f.Indexed {
			idx = append(idx, fmt.Sprintf("INDEX %s NONCLUSTERED (%s)", QuoteIdent(gddl.IndexName(table, f.Name)), QuoteIdent(f.Name)))
		}
	}
	stmt, err := BuildCreateTableSQL(gddl.TableDef{FQN: table, Columns: cols, Constraints: idx})
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

// MapType maps a field onto a SQL Server column type.
//
//	Identifier -> CHAR(n)
//	ShortText  -> NVARCHAR(n), or NVARCHAR(MAX) above 4000 or when unbounded
//	Enum       -> VARCHAR(longest value), constrained by CHECK
//	LongText   -> NVARCHAR(MAX)
//	Date       -> DATE
func MapType(f schema.FieldSpec) (string, error) {
	switch f.Type {
	case schema.Identifier:
		if f.Length > 8000 {
			return "", schema.Untranslatable(Kind, f, "fixed length %d exceeds CHAR(8000)", f.Length)
		}
		return fmt.Sprintf("CHAR(%d)", f.Length), nil
	case schema.ShortText:
		if f.Length > 0 && f.Length <= maxNVarChar {
			return fmt.Sprintf("NVARCHAR(%d)", f.Length), nil
		}
		return "NVARCHAR(MAX)", nil
	case schema.Enum:
		n := f.EnumMaxLen()
		if n > 8000 {
			return "", schema.Untranslatable(Kind, f, "enum label longer than 8000 bytes")
		}
		return fmt.Sprintf("VARCHAR(%d)", n), nil
	case schema.LongText:
		return "NVARCHAR(MAX)", nil
	case schema.Date:
		return "DATE", nil
	}
	return "", schema.Untranslatable(Kind, f, "unsupported semantic type")
}

// BuildCreateTableSQL returns a T-SQL script that creates a table matching
// the provided definition if it does not already exist:
//
//	IF OBJECT_ID(N'[schema].[table]', N'U') IS NULL
//	BEGIN
//	CREATE TABLE [schema].[table] (
//	  [col1] TYPE [NOT NULL],
//	  ...
//	);
//	END
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	t.Quote = QuoteFQN
	t.IfNotExists = false
	create, err := gddl.BuildCreateTableSQL(t)
	if err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s;\nEND", QuoteFQN(t.FQN), create), nil
}

// QuoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string { return gddl.QuoteIdent(id, "[", "]") }

// QuoteFQN quotes a possibly schema-qualified table name, e.g.:
//
//	"dbo.Users"   -> [dbo].[Users]
//	"Users"       -> [Users]
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, "[", "]") }
