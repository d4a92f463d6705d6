package ddl

// ColumnDef describes a single column in a table definition produced or
// consumed by ddl. It intentionally uses simple, database-agnostic fields.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time via TableDef.Quote)
//   - SQLType: target SQL type (e.g., TEXT, CHAR(15), Nullable(String))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Unique: whether a UNIQUE constraint is rendered inline
//   - Check: raw boolean expression rendered as CHECK (<expr>)
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Check      string
	Default    string
}

// TableDef holds the fully-qualified table name (FQN), an ordered list of
// columns and the dialect knobs a renderer needs. The zero value of every knob
// renders the plain baseline form.
type TableDef struct {
	FQN     string
	Columns []ColumnDef

	// Quote renders an identifier (a column name or the FQN). Nil emits names verbatim.
	Quote func(string) string
	// IfNotExists adds IF NOT EXISTS after CREATE TABLE.
	IfNotExists bool
	// OmitNullability suppresses NOT NULL, for dialects that encode
	// nullability in the type itself.
	OmitNullability bool
	// OmitPrimaryKey suppresses the trailing PRIMARY KEY clause, for dialects
	// that express the key in Options.
	OmitPrimaryKey bool
	// Constraints are raw table-level entries (indexes, checks) appended after
	// the PRIMARY KEY clause.
	Constraints []string
	// Options is appended verbatim after the closing parenthesis.
	Options string
}

// PrimaryKeys returns the names of the primary key columns in declaration order.
func (t TableDef) PrimaryKeys() []string {
	var out []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}
