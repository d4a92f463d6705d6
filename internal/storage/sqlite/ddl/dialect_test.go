package ddl

import (
	"strings"
	"testing"

	"dbbench/internal/schema"
)

func TestEmitPeople(t *testing.T) {
	t.Parallel()

	got, err := schema.EmitDDL(Kind, "people", schema.People())
	if err != nil {
		t.Fatalf("EmitDDL: %v", err)
	}
	want := []string{
		`CREATE TABLE IF NOT EXISTS "people" (` + "\n" +
			`  "user_id" CHAR(15) NOT NULL CHECK (length("user_id") <= 15),` + "\n" +
			`  "username" VARCHAR(100) NOT NULL,` + "\n" +
			`  "sex" TEXT NOT NULL CHECK ("sex" IN ('Male', 'Female')),` + "\n" +
			`  "email" VARCHAR(255) NOT NULL,` + "\n" +
			`  "phone" VARCHAR(32),` + "\n" +
			`  "dob" DATE NOT NULL,` + "\n" +
			`  "job_title" TEXT,` + "\n" +
			`  PRIMARY KEY ("user_id")` + "\n" +
			`)`,
		`CREATE INDEX IF NOT EXISTS "people_sex_idx" ON "people" ("sex")`,
		`CREATE INDEX IF NOT EXISTS "people_dob_idx" ON "people" ("dob")`,
	}
	if strings.Join(got.Statements, "\n--\n") != strings.Join(want, "\n--\n") {
		t.Fatalf("EmitDDL =\n%s\nwant:\n%s", got, strings.Join(want, ";\n"))
	}
}

func TestCreateIndexQualified(t *testing.T) {
	t.Parallel()

	got := createIndex("main.people", "dob")
	want := `CREATE INDEX IF NOT EXISTS "main"."people_dob_idx" ON "people" ("dob")`
	if got != want {
		t.Fatalf("createIndex = %s, want %s", got, want)
	}
}

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f    schema.FieldSpec
		want string
	}{
		{schema.FieldSpec{Type: schema.Identifier, Length: 8}, "CHAR(8)"},
		{schema.FieldSpec{Type: schema.ShortText}, "TEXT"},
		{schema.FieldSpec{Type: schema.Enum, Values: []string{"x"}}, "TEXT"},
		{schema.FieldSpec{Type: schema.Date}, "DATE"},
	}
	for _, tt := range tests {
		if got, err := MapType(tt.f); err != nil || got != tt.want {
			t.Errorf("MapType(%s) = %q, %v; want %q", tt.f.Type, got, err, tt.want)
		}
	}
	if _, err := MapType(schema.FieldSpec{Name: "x", Type: 0}); err == nil {
		t.Fatalf("MapType(zero type) error = nil")
	}
}
