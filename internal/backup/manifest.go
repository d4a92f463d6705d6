package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// ManifestSuffix is appended to an artifact path (or, for engine-side
// artifacts, to the artifact name) to locate its manifest.
const ManifestSuffix = ".manifest.yaml"

// Artifact describes one backup. It is persisted next to the artifact as
// YAML so restores know the engine, source table and expected row count.
type Artifact struct {
	Engine         string    `yaml:"engine" json:"engine"`
	Kind           string    `yaml:"kind" json:"kind"`
	SourceTable    string    `yaml:"source_table" json:"source_table"`
	Path           string    `yaml:"path" json:"path"`
	Format         string    `yaml:"format" json:"format"`
	Remote         bool      `yaml:"remote,omitempty" json:"remote,omitempty"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
	SourceRowCount int64     `yaml:"source_row_count" json:"source_row_count"`
	Size           int64     `yaml:"size,omitempty" json:"size,omitempty"`
	Checksum       string    `yaml:"checksum,omitempty" json:"checksum,omitempty"`
	ElapsedSeconds float64   `yaml:"elapsed_seconds" json:"elapsed_seconds"`

	// ManifestPath is where this manifest was read from or written to.
	ManifestPath string `yaml:"-" json:"manifest_path"`
}

// ChecksumError reports an artifact whose content no longer matches its
// manifest.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("artifact %s checksum mismatch: manifest %s, file %s", e.Path, e.Expected, e.Actual)
}

// Checksum returns "xxh3:<hex>" over the file content.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return fmt.Sprintf("xxh3:%016x", h.Sum64()), nil
}

// WriteManifest stores a as YAML at path.
func WriteManifest(path string, a *Artifact) error {
	b, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	a.ManifestPath = path
	return nil
}

// LoadManifest accepts either a manifest path or the path of an artifact
// that has a manifest next to it.
func LoadManifest(p string) (*Artifact, error) {
	if !strings.HasSuffix(p, ManifestSuffix) {
		p += ManifestSuffix
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var a Artifact
	if err := yaml.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", p, err)
	}
	if a.Kind == "" || a.Path == "" || a.SourceTable == "" {
		return nil, fmt.Errorf("manifest %s is incomplete (kind, path and source_table are required)", p)
	}
	a.ManifestPath = p
	return &a, nil
}

// Verify recomputes the checksum of a local artifact.
func (a *Artifact) Verify() error {
	if a.Remote || a.Checksum == "" {
		return nil
	}
	got, err := Checksum(a.Path)
	if err != nil {
		return err
	}
	if got != a.Checksum {
		return &ChecksumError{Path: a.Path, Expected: a.Checksum, Actual: got}
	}
	return nil
}

// List returns the manifests in dir for an engine/table pair, newest first.
func List(dir, engine, table string) ([]*Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ManifestSuffix))
	if err != nil {
		return nil, err
	}
	var out []*Artifact
	for _, m := range matches {
		a, err := LoadManifest(m)
		if err != nil {
			continue
		}
		if a.Engine == engine && a.SourceTable == table {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Prune keeps the newest keep artifacts of an engine/table pair and deletes
// the rest. keep <= 0 disables pruning. Engine-side artifacts lose only their
// manifest; the engine keeps the data.
func Prune(dir, engine, table string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	all, err := List(dir, engine, table)
	if err != nil || len(all) <= keep {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, a := range all[keep:] {
		if !a.Remote {
			if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
		}
		if err := os.Remove(a.ManifestPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, a.Path)
	}
	return removed, errors.Join(errs...)
}
