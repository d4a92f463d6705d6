// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render simple CREATE TABLE statements from that model.
//
// The package stays generic: identifier quoting, IF NOT EXISTS and trailing
// table options are knobs on TableDef that each dialect sets. Column defaults
// and checks are raw SQL; the caller is responsible for dialect correctness.
//
// Backend-specific packages (e.g., internal/storage/postgres/ddl) map logical
// schemas onto TableDef and call BuildCreateTableSQL.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty; it is emitted through t.Quote.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL] [UNIQUE] [DEFAULT <Default>] [CHECK (<Check>)]
//
//   - Columns with PrimaryKey == true are collected and rendered as a separate
//     PRIMARY KEY (<col1>, <col2>, ...) clause at the end of the column list.
//
//   - The resulting statement has the form:
//
//     CREATE TABLE [IF NOT EXISTS] <FQN> (
//     <col1-def>,
//     ...,
//     [PRIMARY KEY (<pk-cols>)],
//     [<Constraints>...]
//     )[ <Options>]
//
// No statement terminator is emitted; callers execute statements one by one.
func BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	quote := t.Quote
	if quote == nil {
		quote = func(s string) string { return s }
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable && !t.OmitNullability {
			sb.WriteString(" NOT NULL")
		}
		if c.Unique && !c.PrimaryKey {
			sb.WriteString(" UNIQUE")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		if chk := strings.TrimSpace(c.Check); chk != "" {
			sb.WriteString(" CHECK (")
			sb.WriteString(chk)
			sb.WriteByte(')')
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}

	if len(pks) > 0 && !t.OmitPrimaryKey {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	for _, c := range t.Constraints {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if t.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quote(fqn))
	sb.WriteString(" (\n  ")
	sb.WriteString(strings.Join(cols, ",\n  "))
	sb.WriteString("\n)")
	if opts := strings.TrimSpace(t.Options); opts != "" {
		sb.WriteByte(' ')
		sb.WriteString(opts)
	}
	return sb.String(), nil
}

// QuoteFQN splits a dotted name and quotes each part with open/close,
// doubling any embedded close characters.
func QuoteFQN(fqn string, open, close string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(strings.TrimSpace(p), open, close)
	}
	return strings.Join(parts, ".")
}

// QuoteIdent quotes a single identifier segment.
func QuoteIdent(id string, open, close string) string {
	return open + strings.ReplaceAll(id, close, close+close) + close
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteLiterals renders each value with QuoteLiteral and joins them with ", ".
func QuoteLiterals(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = QuoteLiteral(v)
	}
	return strings.Join(out, ", ")
}

// BaseName returns the last dotted segment of fqn.
func BaseName(fqn string) string {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

// IndexName derives a deterministic secondary index name for column on fqn.
func IndexName(fqn, column string) string {
	return BaseName(fqn) + "_" + column + "_idx"
}
