package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	_ "dbbench/internal/storage/postgres/ddl"
	_ "dbbench/internal/storage/sqlite/ddl"
)

const header = "user_id,username,sex,email,phone,dob,job_title\n"

func writeCSV(t *testing.T, name string, dobs ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(header)
	for i, dob := range dobs {
		fmt.Fprintf(&b, "u%05d,user%d,Female,user%d@example.com,555-%04d,%s,Engineer\n", i+1, i+1, i+1, i+1, dob)
	}
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestRunCountsFailuresPerField checks that invalid cells are grouped by field
// in schema order and that the first failing value is kept as an example.
func TestRunCountsFailuresPerField(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "people.csv", "1/2/1990", "13/45/2020", "2/30/2021", "3/4/1985")
	sum, err := Run(context.Background(), Options{Location: p, Kind: "postgres", SampleLimit: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Rows != 4 || sum.Valid != 2 || sum.Failed != 2 {
		t.Fatalf("rows/valid/failed = %d/%d/%d; want 4/2/2", sum.Rows, sum.Valid, sum.Failed)
	}
	if sum.Truncated {
		t.Fatalf("Truncated = true for a fully read source")
	}
	if len(sum.Fields) != 1 || sum.Fields[0].Field != "dob" || sum.Fields[0].Failures != 2 {
		t.Fatalf("Fields = %+v; want one dob entry with 2 failures", sum.Fields)
	}
	if got := sum.Fields[0].Example; got != "13/45/2020" {
		t.Fatalf("Example = %q; want first failing value", got)
	}
	if len(sum.Samples) != 1 || sum.Samples[0].Line != 3 {
		t.Fatalf("Samples = %+v; want one sample at line 3", sum.Samples)
	}
	if got := sum.FailureRatio(); got != 0.5 {
		t.Fatalf("FailureRatio = %v; want 0.5", got)
	}
}

// TestRunStopsAtRowLimit ensures the probe reads no more than Rows records and
// flags the sample as truncated when more data follows.
func TestRunStopsAtRowLimit(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "people.csv", "1/2/1990", "1/3/1990", "1/4/1990")
	sum, err := Run(context.Background(), Options{Location: p, Kind: "sqlite", Rows: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Rows != 2 || !sum.Truncated {
		t.Fatalf("Rows=%d Truncated=%v; want 2 true", sum.Rows, sum.Truncated)
	}

	sum, err = Run(context.Background(), Options{Location: p, Kind: "sqlite", Rows: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Truncated {
		t.Fatalf("Truncated = true with Rows equal to the row count")
	}
}

func TestRunMalformedAndDuplicateRows(t *testing.T) {
	t.Parallel()

	body := header +
		"u00001,a,Male,a@example.com,1,1/2/1990,Dev\n" +
		"u00001,b,Male,b@example.com,2,1/2/1990,Dev\n" +
		"u00003,c,Male\n"
	p := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	sum, err := Run(context.Background(), Options{Location: p, Kind: "postgres"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Valid != 1 || sum.Failed != 2 {
		t.Fatalf("valid/failed = %d/%d; want 1/2", sum.Valid, sum.Failed)
	}
	var names []string
	for _, f := range sum.Fields {
		names = append(names, f.Field)
	}
	if got := strings.Join(names, ","); got != "user_id,(row)" {
		t.Fatalf("fields = %q; want user_id then (row)", got)
	}
}

func TestRunReadsGzip(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "people.csv.gz")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	fmt.Fprint(zw, header+"u00001,a,Male,a@example.com,1,1/2/1990,Dev\n")
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	sum, err := Run(context.Background(), Options{Location: p, Kind: "postgres"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Valid != 1 {
		t.Fatalf("Valid = %d; want 1", sum.Valid)
	}
}

func TestRunSetupErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := Run(ctx, Options{Location: filepath.Join(t.TempDir(), "missing.csv"), Kind: "postgres"}); err == nil {
		t.Fatal("expected error for a missing file")
	}

	p := filepath.Join(t.TempDir(), "wrong.csv")
	if err := os.WriteFile(p, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(ctx, Options{Location: p, Kind: "postgres"}); err == nil {
		t.Fatal("expected error for a header without the people columns")
	}

	if _, err := Run(ctx, Options{Location: p, Kind: "no-such-kind"}); err == nil {
		t.Fatal("expected error for an unknown engine kind")
	}
}
