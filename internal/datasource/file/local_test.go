package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, payload string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(payload), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return p
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		prepare         func(t *testing.T) string
		ctx             context.Context
		wantErrIs       error
		wantErrContains string
		wantContent     string
	}{
		{
			name:        "reads_csv",
			prepare:     func(t *testing.T) string { return writeFile(t, "people.csv", "user_id,username\n1,a\n") },
			ctx:         context.Background(),
			wantContent: "user_id,username\n1,a\n",
		},
		{
			name:            "missing_file_wraps_not_exist",
			prepare:         func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
			ctx:             context.Background(),
			wantErrIs:       os.ErrNotExist,
			wantErrContains: "missing.csv",
		},
		{
			name:            "directory_rejected",
			prepare:         func(t *testing.T) string { return t.TempDir() },
			ctx:             context.Background(),
			wantErrContains: "is a directory",
		},
		{
			name:      "canceled_context_short_circuits",
			prepare:   func(t *testing.T) string { return writeFile(t, "people.csv", "ignored") },
			ctx:       canceled(),
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			rc, err := NewLocal(c.prepare(t)).Open(c.ctx)
			if c.wantErrIs != nil || c.wantErrContains != "" {
				if err == nil {
					rc.Close()
					t.Fatalf("expected error, got nil")
				}
				if c.wantErrIs != nil && !errors.Is(err, c.wantErrIs) {
					t.Fatalf("errors.Is(%v, %v) = false", err, c.wantErrIs)
				}
				if c.wantErrContains != "" && !strings.Contains(err.Error(), c.wantErrContains) {
					t.Fatalf("error %q does not contain %q", err, c.wantErrContains)
				}
				if rc != nil {
					t.Fatalf("got non-nil ReadCloser on error: %T", rc)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() unexpected error: %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("reading: %v", err)
			}
			if string(got) != c.wantContent {
				t.Fatalf("content mismatch: got %q, want %q", got, c.wantContent)
			}
		})
	}
}

func TestLocalStdinAndHome(t *testing.T) {
	t.Parallel()

	l := NewLocal(StdinPath)
	l.stdin = strings.NewReader("user_id\n1\n")
	rc, err := l.Open(context.Background())
	if err != nil {
		t.Fatalf("Open(stdin): %v", err)
	}
	got, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if string(got) != "user_id\n1\n" {
		t.Fatalf("stdin content = %q", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if got, want := NewLocal("~/data/people.csv").Path(), filepath.Join(home, "data", "people.csv"); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
}

func BenchmarkLocalOpen(b *testing.B) {
	p := filepath.Join(b.TempDir(), "people.csv")
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		b.Fatalf("write test file: %v", err)
	}
	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if err := rc.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
