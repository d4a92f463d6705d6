package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/schema"
	_ "dbbench/internal/storage/sqlite/ddl"
)

func row(line int64, cells ...string) SourceRecord {
	return SourceRecord{Line: line, Cells: cells}
}

func good(line int64, id string) SourceRecord {
	return row(line, id, "Ada Lovelace", "Female", "ada@example.com", "(555)010-1234", "12/10/1815", "Analyst")
}

func TestCoerceValidRecord(t *testing.T) {
	p, err := Compile(schema.People(), "postgres")
	require.NoError(t, err)

	rec, fail := p.Coerce(good(2, "88F7B33d2bcf9f5"), nil)
	require.Nil(t, fail)
	assert.Equal(t, int64(2), rec.Line)
	require.Len(t, rec.Values, 7)
	assert.Equal(t, "88F7B33d2bcf9f5", rec.Values[0])
	assert.Equal(t, "Female", rec.Values[2])
	assert.Equal(t, time.Date(1815, time.December, 10, 0, 0, 0, 0, time.UTC), rec.Values[5])
}

func TestCoerceDateAsTextForSQLite(t *testing.T) {
	p, err := Compile(schema.People(), "sqlite")
	require.NoError(t, err)
	rec, fail := p.Coerce(good(2, "a"), nil)
	require.Nil(t, fail)
	assert.Equal(t, "1815-12-10", rec.Values[5])
}

func TestCoerceFailures(t *testing.T) {
	cases := []struct {
		name   string
		rec    SourceRecord
		field  string
		reason string
	}{
		{"invalid date", row(3, "b", "Bob", "Male", "b@x", "", "13/45/2020", ""), "dob", "month/day/year"},
		{"iso date rejected", row(3, "b", "Bob", "Male", "b@x", "", "2020-01-02", ""), "dob", "month/day/year"},
		{"enum case", row(4, "c", "Cy", "male", "c@x", "", "1/2/2000", ""), "sex", "not one of [Male, Female]"},
		{"required empty", row(5, "d", "  ", "Male", "d@x", "", "1/2/2000", ""), "username", "required value is empty"},
		{"identifier too long", row(6, "0123456789abcdef", "D", "Male", "d@x", "", "1/2/2000", ""), "user_id", "longer than 15"},
		{"width", row(7, "only", "three", "cells"), "", "expected 7 fields, got 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Compile(schema.People(), "postgres")
			require.NoError(t, err)
			_, fail := p.Coerce(tc.rec, nil)
			require.NotNil(t, fail)
			assert.Equal(t, tc.rec.Line, fail.Line)
			assert.Equal(t, tc.field, fail.Field)
			assert.Contains(t, fail.Reason, tc.reason)
		})
	}
}

func TestCoerceNullableEmptyIsNil(t *testing.T) {
	p, err := Compile(schema.People(), "postgres")
	require.NoError(t, err)
	rec, fail := p.Coerce(row(2, "e", "Eve", "Female", "e@x", " ", "2/29/2000", ""), nil)
	require.Nil(t, fail)
	assert.Nil(t, rec.Values[4])
	assert.Nil(t, rec.Values[6])
}

func TestCoerceDuplicateIdentifier(t *testing.T) {
	p, err := Compile(schema.People(), "postgres")
	require.NoError(t, err)

	_, fail := p.Coerce(good(2, "dup"), nil)
	require.Nil(t, fail)

	// A rejected record does not reserve its identifier.
	bad := good(3, "other")
	bad.Cells[5] = "nope"
	_, fail = p.Coerce(bad, nil)
	require.NotNil(t, fail)
	_, fail = p.Coerce(good(4, "other"), nil)
	require.Nil(t, fail)

	_, fail = p.Coerce(good(5, "dup"), nil)
	require.NotNil(t, fail)
	assert.Equal(t, "user_id", fail.Field)
	assert.Equal(t, "duplicate identifier", fail.Reason)
	assert.Equal(t, `line 5: field user_id="dup": duplicate identifier`, fail.String())
}

func TestCoerceNormalizesText(t *testing.T) {
	p, err := Compile(schema.People(), "postgres")
	require.NoError(t, err)

	r := good(2, "n")
	r.Cells[1] = "Jose\u0301\x07 Perez"              // decomposed accent plus BEL
	r.Cells[6] = "line one\nline\u0000 two" // newline kept in long text, NUL dropped
	rec, fail := p.Coerce(r, nil)
	require.Nil(t, fail)
	assert.Equal(t, "Jos\u00e9 Perez", rec.Values[1])
	assert.Equal(t, "line one\nline two", rec.Values[6])
}

func TestCoerceReusesDst(t *testing.T) {
	p, err := Compile(schema.People(), "postgres")
	require.NoError(t, err)
	buf := make([]any, 0, 7)
	rec, fail := p.Coerce(good(2, "r"), buf)
	require.Nil(t, fail)
	assert.Same(t, &buf[:1][0], &rec.Values[0])
}

func TestParseMDY(t *testing.T) {
	valid := map[string]time.Time{
		"1/2/2006":   time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC),
		"01/02/2006": time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC),
		"12/31/1899": time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC),
		"2/29/2024":  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range valid {
		got, ok := ParseMDY(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{
		"", "13/45/2020", "2/29/1900", "4/31/2020", "0/1/2020", "1/0/2020",
		"1/2/20", "1/2/20201", "001/2/2020", "1-2-2020", "a/b/cdef", "1/2/2020 ", "1//2020",
	} {
		_, ok := ParseMDY(in)
		assert.False(t, ok, in)
	}
}

func TestIDSet(t *testing.T) {
	s := NewIDSet(4)
	assert.True(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.False(t, s.Add("a"))
	assert.Equal(t, 2, s.Len())
}

func BenchmarkCoerce(b *testing.B) {
	p, err := Compile(schema.People(), "postgres")
	if err != nil {
		b.Fatal(err)
	}
	rec := good(2, "x")
	buf := make([]any, 7)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.ids = NewIDSet(0)
		if _, fail := p.Coerce(rec, buf); fail != nil {
			b.Fatal(fail)
		}
	}
}
