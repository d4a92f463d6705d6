package ddl

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/schema"
)

func TestEmitPeople(t *testing.T) {
	got, err := schema.EmitDDL(Kind, "bench.people", schema.People())
	require.NoError(t, err)
	require.Len(t, got.Statements, 1)
	assert.Equal(t, schema.Columnar, got.Family)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `bench`.`people` (\n"+
		"  `user_id` FixedString(15),\n"+
		"  `username` String,\n"+
		"  `sex` Enum8('Male' = 1, 'Female' = 2),\n"+
		"  `email` String,\n"+
		"  `phone` Nullable(String),\n"+
		"  `dob` Date32,\n"+
		"  `job_title` Nullable(String),\n"+
		"  INDEX `people_sex_idx` `sex` TYPE set(2) GRANULARITY 4,\n"+
		"  INDEX `people_dob_idx` `dob` TYPE minmax GRANULARITY 4\n"+
		") ENGINE = MergeTree ORDER BY (`user_id`)", got.Statements[0])
}

func enumField(n int) schema.FieldSpec {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = "v" + strconv.Itoa(i)
	}
	return schema.FieldSpec{Name: "e", Type: schema.Enum, Values: vals}
}

func TestEnumWidth(t *testing.T) {
	typ, err := MapType(enumField(127))
	require.NoError(t, err)
	assert.Regexp(t, `^Enum8\(`, typ)

	typ, err = MapType(enumField(128))
	require.NoError(t, err)
	assert.Regexp(t, `^Enum16\(`, typ)
	assert.Contains(t, typ, "'v127' = 128")

	_, err = MapType(enumField(maxEnum16 + 1))
	var te *schema.TranslationError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, Kind, te.Engine)
	assert.Equal(t, "e", te.Field)
}

func TestMapTypeNullableAndLowCardinality(t *testing.T) {
	typ, err := MapType(schema.FieldSpec{Type: schema.Date, Nullable: true})
	require.NoError(t, err)
	assert.Equal(t, "Nullable(Date32)", typ)

	typ, err = MapType(schema.FieldSpec{Type: schema.ShortText, Cardinality: schema.CardinalityLow})
	require.NoError(t, err)
	assert.Equal(t, "LowCardinality(String)", typ)

	typ, err = MapType(schema.FieldSpec{Type: schema.ShortText, Cardinality: schema.CardinalityLow, Nullable: true})
	require.NoError(t, err)
	assert.Equal(t, "LowCardinality(Nullable(String))", typ)
}

func TestEmitWithoutIdentifier(t *testing.T) {
	s := schema.LogicalSchema{Name: "x", Fields: []schema.FieldSpec{{Name: "a", Type: schema.LongText}}}
	_, err := schema.EmitDDL(Kind, "x", s)
	var te *schema.TranslationError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Error(), "ORDER BY")
}
