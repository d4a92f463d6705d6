package csv

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/config"
)

var cols = []string{"user_id", "username", "sex", "email", "phone", "dob", "job_title"}

const header = "User Id,Username,Sex,Email,Phone,Dob,Job Title\n"

func drain(t *testing.T, r *Reader) ([]int64, []*RowError) {
	t.Helper()
	var lines []int64
	var bad []*RowError
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return lines, bad
		}
		var re *RowError
		if errors.As(err, &re) {
			bad = append(bad, re)
			continue
		}
		require.NoError(t, err)
		require.Len(t, rec.Cells, len(cols))
		lines = append(lines, rec.Line)
	}
}

func TestReaderLineNumbers(t *testing.T) {
	in := "\uFEFF" + header +
		"a,Ann,Female,a@x,,1/2/1990,Dev\n" +
		"b,\"Bo\nMulti\",Male,b@x,,1/2/1990,Dev\n" +
		"c,Cy,Male,c@x,,1/2/1990,Dev\n"
	r, err := NewReader(strings.NewReader(in), cols, nil)
	require.NoError(t, err)
	lines, bad := drain(t, r)
	assert.Empty(t, bad)
	// The quoted newline makes the third record start on line 5.
	assert.Equal(t, []int64{2, 3, 5}, lines)
}

func TestReaderMapsHeaderOrder(t *testing.T) {
	in := "dob,user_id,username,sex,email,phone,job_title\n" +
		"1/2/1990,a,Ann,Female,a@x,555,Dev\n"
	r, err := NewReader(strings.NewReader(in), cols, nil)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Ann", "Female", "a@x", "555", "1/2/1990", "Dev"}, rec.Cells)
}

func TestReaderHeaderMapAndNoHeader(t *testing.T) {
	opt := config.Options{"header_map": map[string]any{"Job": "job_title"}}
	in := "user_id,username,sex,email,phone,dob,Job\na,b,Male,e,p,1/1/2000,j\n"
	r, err := NewReader(strings.NewReader(in), cols, opt)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "j", rec.Cells[6])

	r, err = NewReader(strings.NewReader("a;b;Male;e;p;1/1/2000;j\n"), cols, config.Options{"has_header": false, "comma": ";"})
	require.NoError(t, err)
	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Line)
	assert.Equal(t, "Male", rec.Cells[2])
}

func TestReaderMissingHeaderColumn(t *testing.T) {
	_, err := NewReader(strings.NewReader("user_id,username\n"), cols, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns sex, email, phone, dob, job_title")

	_, err = NewReader(strings.NewReader(""), cols, nil)
	assert.ErrorContains(t, err, "empty input")
}

func TestReaderRowErrors(t *testing.T) {
	in := header +
		"a,Ann,Female,a@x,,1/2/1990,Dev\n" +
		"short,row\n" +
		"b,B\"o,Male,b@x,,1/2/1990,Dev\n" +
		"c,Cy,Male,c@x,,1/2/1990,Dev\n"
	r, err := NewReader(strings.NewReader(in), cols, nil)
	require.NoError(t, err)
	lines, bad := drain(t, r)
	assert.Equal(t, []int64{2, 5}, lines)
	require.Len(t, bad, 2)
	assert.Equal(t, int64(3), bad[0].Line)
	assert.Equal(t, "short,row", bad[0].Raw)
	assert.Equal(t, int64(4), bad[1].Line)
}
