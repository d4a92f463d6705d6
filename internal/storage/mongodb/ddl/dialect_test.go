package ddl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/schema"
)

func TestEmitPeople(t *testing.T) {
	got, err := schema.EmitDDL(Kind, "people", schema.People())
	require.NoError(t, err)
	assert.Equal(t, schema.Document, got.Family)
	assert.Equal(t, []string{
		`db.createCollection("people")`,
		`db.getCollection("people").createIndex({"user_id": 1}, {"name": "user_id_1", "unique": true})`,
		`db.getCollection("people").createIndex({"sex": 1}, {"name": "sex_1"})`,
		`db.getCollection("people").createIndex({"dob": 1}, {"name": "dob_1"})`,
	}, got.Statements)
	assert.NotContains(t, got.String(), ";")
}

func TestIndexes(t *testing.T) {
	idx, err := Indexes("people", schema.People())
	require.NoError(t, err)
	require.Len(t, idx, 3)
	assert.Equal(t, IndexSpec{Name: "user_id_1", Keys: []string{"user_id"}, Unique: true}, idx[0])
	assert.False(t, idx[1].Unique)
}

func TestTranslationErrors(t *testing.T) {
	cases := []struct {
		name       string
		collection string
		field      schema.FieldSpec
	}{
		{"dollar field", "people", schema.FieldSpec{Name: "$x", Type: schema.ShortText}},
		{"dotted field", "people", schema.FieldSpec{Name: "a.b", Type: schema.ShortText}},
		{"reserved id", "people", schema.FieldSpec{Name: "_id", Type: schema.ShortText}},
		{"dollar collection", "pe$ople", schema.FieldSpec{Name: "a", Type: schema.ShortText}},
		{"system collection", "system.people", schema.FieldSpec{Name: "a", Type: schema.ShortText}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := schema.LogicalSchema{Name: "x", Fields: []schema.FieldSpec{tc.field}}
			_, err := schema.EmitDDL(Kind, tc.collection, s)
			var te *schema.TranslationError
			require.True(t, errors.As(err, &te), "got %v", err)
			assert.Equal(t, Kind, te.Engine)
		})
	}
}
