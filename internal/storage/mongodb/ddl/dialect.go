// Package ddl translates logical schemas into MongoDB collection and index
// directives. Documents are schemaless; the directives only describe the
// collection and the indexes the harness creates on it.
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"dbbench/internal/schema"
)

// Kind is the engine kind this dialect registers under.
const Kind = "mongodb"

func init() { schema.RegisterDialect(Kind, Dialect{}) }

// IndexSpec is one ascending single- or multi-key index.
type IndexSpec struct {
	Name   string
	Keys   []string
	Unique bool
}

// Dialect implements schema.Dialect for MongoDB.
type Dialect struct{}

func (Dialect) Family() schema.Family { return schema.Document }

// Emit renders mongosh directives: one createCollection followed by one
// createIndex per index.
func (Dialect) Emit(collection string, s schema.LogicalSchema) ([]string, error) {
	idx, err := Indexes(collection, s)
	if err != nil {
		return nil, err
	}
	coll := strconv.Quote(collection)
	out := make([]string, 0, len(idx)+1)
	out = append(out, "db.createCollection("+coll+")")
	for _, ix := range idx {
		keys := make([]string, len(ix.Keys))
		for i, k := range ix.Keys {
			keys[i] = strconv.Quote(k) + ": 1"
		}
		opts := `{"name": ` + strconv.Quote(ix.Name)
		if ix.Unique {
			opts += `, "unique": true`
		}
		opts += "}"
		out = append(out, fmt.Sprintf("db.getCollection(%s).createIndex({%s}, %s)", coll, strings.Join(keys, ", "), opts))
	}
	return out, nil
}

// Indexes derives the index set for s: a unique index per Identifier or
// Unique field and a plain index per Indexed field, in field order.
func Indexes(collection string, s schema.LogicalSchema) ([]IndexSpec, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	var out []IndexSpec
	for _, f := range s.Fields {
		if err := schema.CheckField(Kind, f); err != nil {
			return nil, err
		}
		if err := checkFieldName(f); err != nil {
			return nil, err
		}
		unique := f.Type == schema.Identifier || f.Unique
		if !unique && !f.Indexed {
			continue
		}
		out = append(out, IndexSpec{Name: f.Name + "_1", Keys: []string{f.Name}, Unique: unique})
	}
	return out, nil
}

func checkCollection(name string) error {
	switch {
	case strings.ContainsAny(name, "$\x00"):
		return &schema.TranslationError{Engine: Kind, Reason: fmt.Sprintf("collection name %q contains '$' or NUL", name)}
	case strings.HasPrefix(name, "system."):
		return &schema.TranslationError{Engine: Kind, Reason: fmt.Sprintf("collection name %q uses the reserved system. prefix", name)}
	}
	return nil
}

func checkFieldName(f schema.FieldSpec) error {
	switch {
	case strings.HasPrefix(f.Name, "$"):
		return schema.Untranslatable(Kind, f, "field names cannot start with '$'")
	case strings.ContainsAny(f.Name, ".\x00"):
		return schema.Untranslatable(Kind, f, "field names cannot contain '.' or NUL")
	case f.Name == "_id":
		return schema.Untranslatable(Kind, f, "_id is reserved for the document key")
	}
	return nil
}
