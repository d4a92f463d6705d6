// Package report persists run results (one file per run) and renders them
// as console tables.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Formats.
const (
	YAML = "yaml"
	JSON = "json"
)

// Writer stores reports under Dir.
type Writer struct {
	Dir    string
	Format string

	now func() time.Time
}

// NewWriter validates format ("yaml" or "json"; empty means yaml).
func NewWriter(dir, format string) (*Writer, error) {
	switch format {
	case "":
		format = YAML
	case YAML, JSON:
	default:
		return nil, fmt.Errorf("unknown report format %q (yaml|json)", format)
	}
	return &Writer{Dir: dir, Format: format, now: time.Now}, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// FileName builds "<kind>-<name>-<UTC timestamp>-<short id>.<ext>".
func (w *Writer) FileName(kind, name string) string {
	return fmt.Sprintf("%s-%s-%s-%s.%s",
		kind,
		unsafeName.ReplaceAllString(name, "_"),
		w.now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
		w.Format)
}

// Write serializes v into a new file and returns its path.
func (w *Writer) Write(kind, name string, v any) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	var (
		b   []byte
		err error
	)
	if w.Format == JSON {
		b, err = json.MarshalIndent(v, "", "  ")
		b = append(b, '\n')
	} else {
		b, err = yaml.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s report: %w", kind, err)
	}
	p := filepath.Join(w.Dir, w.FileName(kind, name))
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return p, nil
}
