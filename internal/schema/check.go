package schema

import (
	"fmt"
	"slices"
)

// CheckField validates the type parameters every dialect relies on and
// returns a TranslationError naming engine when they are missing.
func CheckField(engine string, f FieldSpec) error {
	switch f.Type {
	case Identifier:
		if f.Length <= 0 {
			return Untranslatable(engine, f, "identifier needs a positive fixed length")
		}
		if f.Nullable {
			return Untranslatable(engine, f, "identifier cannot be nullable")
		}
	case Enum:
		if len(f.Values) == 0 {
			return Untranslatable(engine, f, "enum declares no values")
		}
		seen := make(map[string]struct{}, len(f.Values))
		for _, v := range f.Values {
			if v == "" {
				return Untranslatable(engine, f, "enum declares an empty value")
			}
			if _, dup := seen[v]; dup {
				return Untranslatable(engine, f, "enum declares %q twice", v)
			}
			seen[v] = struct{}{}
		}
	case ShortText, LongText, Date:
	default:
		return Untranslatable(engine, f, "unsupported semantic type")
	}
	return nil
}

// CheckColumns compares the column names an engine reports for a table, in
// ordinal order, with s. Names are compared exactly.
func CheckColumns(engine, table string, s LogicalSchema, got []string) error {
	want := s.Columns()
	if slices.Equal(got, want) {
		return nil
	}
	if len(got) != len(want) {
		return fmt.Errorf("%s: table %s has %d columns, schema %s has %d", engine, table, len(got), s.Name, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%s: table %s column %d is %q, schema %s expects %q", engine, table, i+1, got[i], s.Name, want[i])
		}
	}
	return nil
}
