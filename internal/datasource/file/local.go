// Package file opens loader inputs from the local disk or standard input.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// StdinPath selects standard input instead of a file.
const StdinPath = "-"

// Local is a source bound to one path.
type Local struct {
	path  string
	stdin io.Reader
}

// NewLocal binds path. A leading "~/" is expanded to the home directory.
func NewLocal(path string) *Local {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, rest)
		}
	}
	return &Local{path: path, stdin: os.Stdin}
}

func (l *Local) Path() string { return l.path }

// Open returns the file contents. Errors keep errors.Is(err, fs.ErrNotExist)
// working. Directories fail here rather than on the first Read.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.path == StdinPath {
		return io.NopCloser(l.stdin), nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	fi, err := f.Stat()
	if err == nil && fi.IsDir() {
		err = errors.New("is a directory")
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("source %s: %w", l.path, err)
	}
	log.WithFields(log.Fields{"path": l.path, "size": humanize.IBytes(uint64(fi.Size()))}).Debug("opened source")
	return f, nil
}
