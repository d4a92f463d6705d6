package mongodb

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dbbench/internal/storage"
)

// Format tags artifacts produced by Backup: concatenated BSON documents, as
// written by mongodump, compressed with zstd.
const Format = "mongodb-bson-zstd"

// restoreBatch is the number of documents per InsertMany during Restore.
const restoreBatch = 1000

// maxDocSize bounds a single document read back from an artifact.
const maxDocSize = 16 << 20

func (e *Engine) Backup(ctx context.Context, req storage.BackupRequest) (storage.BackupResult, error) {
	start := time.Now()
	if ok, err := e.exists(ctx, req.Table); err != nil || !ok {
		if err == nil {
			err = storage.ErrTableNotFound
		}
		return storage.BackupResult{}, fmt.Errorf("mongodb: backup %s: %w", req.Table, err)
	}
	path := filepath.Join(req.Dir, req.Name+".bson.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return storage.BackupResult{}, fmt.Errorf("mongodb: create artifact: %w", err)
	}
	fail := func(err error) (storage.BackupResult, error) {
		f.Close()
		os.Remove(path)
		return storage.BackupResult{}, fmt.Errorf("mongodb: backup %s: %w", req.Table, err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fail(err)
	}
	cur, err := e.db.Collection(req.Table).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		zw.Close()
		return fail(err)
	}
	for cur.Next(ctx) {
		if _, err := zw.Write(cur.Current); err != nil {
			cur.Close(ctx)
			zw.Close()
			return fail(err)
		}
	}
	err = cur.Err()
	cur.Close(ctx)
	if err != nil {
		zw.Close()
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	fi, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	return storage.BackupResult{Path: path, Format: Format, Size: fi.Size(), Took: time.Since(start)}, nil
}

// Restore creates the collection with the schema's indexes and replays the
// documents, keeping their _id values.
func (e *Engine) Restore(ctx context.Context, req storage.RestoreRequest) error {
	if req.Format != "" && req.Format != Format {
		return fmt.Errorf("mongodb: cannot restore artifact format %q", req.Format)
	}
	f, err := os.Open(req.Artifact)
	if err != nil {
		return fmt.Errorf("mongodb: artifact: %w", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("mongodb: artifact: %w", err)
	}
	defer zr.Close()

	if err := e.EnsureTable(ctx, req.NewTable, req.Schema); err != nil {
		return err
	}
	coll := e.db.Collection(req.NewTable)
	_, err = ReadDocuments(zr, restoreBatch, func(docs []any) error {
		_, err := coll.InsertMany(ctx, docs)
		return err
	})
	if err != nil {
		return fmt.Errorf("mongodb: restore into %s: %w", req.NewTable, err)
	}
	return nil
}

// ReadDocuments splits a stream of concatenated BSON documents and passes
// them to fn in batches. It returns the number of documents read.
func ReadDocuments(r io.Reader, batch int, fn func(docs []any) error) (int64, error) {
	br := bufio.NewReader(r)
	var (
		n    int64
		docs = make([]any, 0, batch)
		hdr  [4]byte
	)
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return n, fmt.Errorf("document %d: %w", n+1, err)
		}
		size := binary.LittleEndian.Uint32(hdr[:])
		if size < 5 || size > maxDocSize {
			return n, fmt.Errorf("document %d: invalid length %d", n+1, size)
		}
		doc := make([]byte, size)
		copy(doc, hdr[:])
		if _, err := io.ReadFull(br, doc[4:]); err != nil {
			return n, fmt.Errorf("document %d: %w", n+1, err)
		}
		if err := bson.Raw(doc).Validate(); err != nil {
			return n, fmt.Errorf("document %d: %w", n+1, err)
		}
		docs = append(docs, bson.Raw(doc))
		n++
		if len(docs) == batch {
			if err := fn(docs); err != nil {
				return n, err
			}
			docs = make([]any, 0, batch)
		}
	}
	if len(docs) > 0 {
		if err := fn(docs); err != nil {
			return n, err
		}
	}
	return n, nil
}
