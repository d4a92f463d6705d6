package config

import (
	"reflect"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// decodeOptions runs a YAML snippet through the same decoder the config
// loader uses, so the getters see the value types yaml.v3 produces.
func decodeOptions(t *testing.T, src string) Options {
	t.Helper()
	var w struct {
		Opts Options `yaml:"options"`
	}
	if err := yaml.Unmarshal([]byte(src), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return w.Opts
}

func TestOptionsGettersOnDecodedYAML(t *testing.T) {
	t.Parallel()

	o := decodeOptions(t, `
options:
  journal_mode: WAL
  local_infile: true
  max_conns: 8
  ratio: 2.0
  half: 2.5
  comma: ";"
  wide: "ž,"
  busy_timeout: 1500ms
  dial_timeout: 3
`)

	if got := o.String("journal_mode", "DELETE"); got != "WAL" {
		t.Fatalf("String = %q, want WAL", got)
	}
	if got := o.String("max_conns", "def"); got != "def" {
		t.Fatalf("String on an int = %q, want default", got)
	}
	if !o.Bool("local_infile", false) {
		t.Fatal("Bool(local_infile) = false, want true")
	}
	if got := o.Int("max_conns", 0); got != 8 {
		t.Fatalf("Int(max_conns) = %d, want 8", got)
	}
	if got := o.Int("ratio", 0); got != 2 {
		t.Fatalf("Int(whole float) = %d, want 2", got)
	}
	if got := o.Int("half", 7); got != 7 {
		t.Fatalf("Int(fraction) = %d, want default", got)
	}
	if got := o.Rune("comma", ','); got != ';' {
		t.Fatalf("Rune(comma) = %q, want ';'", got)
	}
	if got := o.Rune("wide", ','); got != 'ž' {
		t.Fatalf("Rune(wide) = %q, want first rune ž", got)
	}
	if got := o.Duration("busy_timeout", 0); got != 1500*time.Millisecond {
		t.Fatalf("Duration(string) = %v", got)
	}
	if got := o.Duration("dial_timeout", 0); got != 3*time.Second {
		t.Fatalf("Duration(seconds) = %v", got)
	}
}

func TestOptionsDefaultsOnMissingOrBadValues(t *testing.T) {
	t.Parallel()

	o := Options{"empty": "", "bad": "soon", "bin": "\xff"}
	if got := o.Rune("empty", 'X'); got != 'X' {
		t.Fatalf("Rune(empty) = %q, want default", got)
	}
	if got := o.Rune("bin", 'X'); got != 'X' {
		t.Fatalf("Rune(invalid utf8) = %q, want default", got)
	}
	if got := o.Duration("bad", time.Second); got != time.Second {
		t.Fatalf("Duration(bad) = %v, want default", got)
	}
	if got := o.Bool("missing", true); !got {
		t.Fatal("Bool(missing) = false, want default true")
	}

	var nilOpts Options
	if got := nilOpts.Int("max_conns", 4); got != 4 {
		t.Fatalf("Int on nil Options = %d, want default", got)
	}
}

func TestOptionsStringMap(t *testing.T) {
	t.Parallel()

	o := decodeOptions(t, `
options:
  header_map:
    Job Title: job_title
    DOB: dob
    ignored: 3
`)
	want := map[string]string{"Job Title": "job_title", "DOB": "dob"}
	if got := o.StringMap("header_map"); !reflect.DeepEqual(got, want) {
		t.Fatalf("StringMap = %#v, want %#v", got, want)
	}
	if got := o.StringMap("missing"); got == nil || len(got) != 0 {
		t.Fatalf("StringMap(missing) = %#v, want empty non-nil map", got)
	}
}

func TestOptionsUnmarshalYAML(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"options:\n", "options: null\n", "options: {}\n"} {
		o := decodeOptions(t, src)
		if len(o) != 0 {
			t.Fatalf("%q decoded to %#v, want empty Options", src, o)
		}
		if got := o.String("any", "def"); got != "def" {
			t.Fatalf("%q: String = %q, want default", src, got)
		}
	}

	for _, src := range []string{"options: [1, 2]\n", "options: plain\n"} {
		var w struct {
			Opts Options `yaml:"options"`
		}
		if err := yaml.Unmarshal([]byte(src), &w); err == nil {
			t.Fatalf("%q: expected an error for a non-mapping", src)
		}
	}
}
