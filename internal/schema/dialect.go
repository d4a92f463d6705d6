package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dialect translates a LogicalSchema into one engine's native statements.
// Row and columnar dialects return SQL statements; the document dialect
// returns collection and index directives.
type Dialect interface {
	Family() Family
	Emit(table string, s LogicalSchema) ([]string, error)
}

// TextDates is implemented by dialects that store Date fields as text
// rather than a native date type. DateLayout is a time layout string.
type TextDates interface {
	DateLayout() string
}

// DDL is the result of EmitDDL for one engine kind.
type DDL struct {
	Engine     string
	Family     Family
	Table      string
	Statements []string
}

// String renders the statements as a script, one statement per line group.
func (d DDL) String() string {
	var sb strings.Builder
	for _, s := range d.Statements {
		sb.WriteString(s)
		if d.Family != Document {
			sb.WriteByte(';')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TranslationError reports a field whose semantic type has no representation
// in an engine. It is fatal to the emission call only.
type TranslationError struct {
	Engine string
	Field  string
	Type   SemanticType
	Reason string
}

func (e *TranslationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema translation for %s: %s", e.Engine, e.Reason)
	}
	return fmt.Sprintf("schema translation for %s: field %q (%s): %s", e.Engine, e.Field, e.Type, e.Reason)
}

// Untranslatable builds a TranslationError for f.
func Untranslatable(engine string, f FieldSpec, format string, args ...any) *TranslationError {
	return &TranslationError{Engine: engine, Field: f.Name, Type: f.Type, Reason: fmt.Sprintf(format, args...)}
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect makes a dialect available under an engine kind. Backends
// call it from init; registering the same kind twice panics.
func RegisterDialect(kind string, d Dialect) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	if d == nil {
		panic("schema: RegisterDialect with nil dialect for " + kind)
	}
	if _, dup := dialects[kind]; dup {
		panic("schema: RegisterDialect called twice for " + kind)
	}
	dialects[kind] = d
}

// LookupDialect returns the dialect registered for kind.
func LookupDialect(kind string) (Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(strings.TrimSpace(kind))]
	return d, ok
}

// Dialects lists registered engine kinds, sorted.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EmitDDL produces the DDL for table on the given engine kind. Emission is
// deterministic: the same inputs always yield the same statements.
func EmitDDL(kind, table string, s LogicalSchema) (DDL, error) {
	d, ok := LookupDialect(kind)
	if !ok {
		return DDL{}, fmt.Errorf("schema: no dialect registered for engine kind %q (known: %s)", kind, strings.Join(Dialects(), ", "))
	}
	if strings.TrimSpace(table) == "" {
		return DDL{}, fmt.Errorf("schema: empty table name for engine kind %q", kind)
	}
	if err := s.Validate(); err != nil {
		return DDL{}, err
	}
	stmts, err := d.Emit(table, s)
	if err != nil {
		return DDL{}, err
	}
	return DDL{Engine: kind, Family: d.Family(), Table: table, Statements: stmts}, nil
}
