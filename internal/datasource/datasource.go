// Package datasource opens loader inputs: local files or http(s) URLs. gzip
// and zstd payloads are detected by their magic bytes and decompressed on the
// fly, so `people.csv.zst` and a gzip-encoded download read like plain CSV.
package datasource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"dbbench/internal/datasource/file"
	"dbbench/internal/datasource/httpds"
)

// Source yields a fresh stream of bytes on every Open.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// New returns the Source for location.
func New(location string, cfg httpds.Config) Source {
	if IsRemote(location) {
		return httpds.NewRemote(httpds.NewClient(cfg), location)
	}
	return file.NewLocal(location)
}

// Open opens location and wraps it with a decompressor when needed.
func Open(ctx context.Context, location string, cfg httpds.Config) (io.ReadCloser, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("datasource: empty location")
	}
	rc, err := New(location, cfg).Open(ctx)
	if err != nil {
		return nil, err
	}
	return Decompress(rc)
}

// Decompress sniffs the first bytes of rc. On error rc is closed.
func Decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(rc, 64<<10)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		_ = rc.Close()
		return nil, fmt.Errorf("datasource: sniff: %w", err)
	}
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("datasource: gzip: %w", err)
		}
		return &stack{Reader: gz, closers: []io.Closer{gz, rc}}, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("datasource: zstd: %w", err)
		}
		zrc := zr.IOReadCloser()
		return &stack{Reader: zrc, closers: []io.Closer{zrc, rc}}, nil
	}
	return &stack{Reader: br, closers: []io.Closer{rc}}, nil
}

// stack closes every layer, innermost last, and reports the first error.
type stack struct {
	io.Reader
	closers []io.Closer
}

func (s *stack) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
