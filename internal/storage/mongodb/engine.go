// Package mongodb implements the document storage engine with the official
// Go driver (mongo-driver/v2). Rows become documents keyed by field name;
// benchmark queries arrive as extended-JSON command documents.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dbbench/internal/config"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
	mongoddl "dbbench/internal/storage/mongodb/ddl"
)

// DefaultDatabase is used when neither the config nor the URI names one.
const DefaultDatabase = "dbbench"

// Engine is a MongoDB-backed storage.Engine.
type Engine struct {
	name   string
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Engine = (*Engine)(nil)

// Open connects to the mongodb:// URI in cfg.DSN. Options: max_pool_size.
func Open(ctx context.Context, cfg storage.Config) (*Engine, error) {
	dbName := cfg.Database
	if dbName == "" {
		dbName = databaseFromURI(cfg.DSN)
	}
	co := options.Client().ApplyURI(cfg.DSN)
	if n := config.Options(cfg.Options).Int("max_pool_size", 0); n > 0 {
		co.SetMaxPoolSize(uint64(n))
	}
	client, err := mongo.Connect(co)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storage.Connection(cfg.Name, cfg.DSN, err)
	}
	return &Engine{name: cfg.Name, client: client, db: client.Database(dbName)}, nil
}

// databaseFromURI returns the path segment of a mongodb:// URI, or
// DefaultDatabase.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultDatabase
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return DefaultDatabase
}

func (e *Engine) Kind() string          { return mongoddl.Kind }
func (e *Engine) Family() schema.Family { return schema.Document }

func (e *Engine) exists(ctx context.Context, coll string) (bool, error) {
	names, err := e.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: coll}})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// EnsureTable creates the collection when missing and (re)declares its
// indexes; createIndexes is a no-op for an identical existing index.
func (e *Engine) EnsureTable(ctx context.Context, table string, s schema.LogicalSchema) error {
	idx, err := mongoddl.Indexes(table, s)
	if err != nil {
		return err
	}
	ok, err := e.exists(ctx, table)
	if err != nil {
		return fmt.Errorf("mongodb: list collections: %w", err)
	}
	if !ok {
		if err := e.db.CreateCollection(ctx, table); err != nil {
			return fmt.Errorf("mongodb: create collection %s: %w", table, err)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, len(idx))
	for i, ix := range idx {
		keys := bson.D{}
		for _, k := range ix.Keys {
			keys = append(keys, bson.E{Key: k, Value: 1})
		}
		models[i] = mongo.IndexModel{Keys: keys, Options: options.Index().SetName(ix.Name).SetUnique(ix.Unique)}
	}
	if _, err := e.db.Collection(table).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongodb: create indexes on %s: %w", table, err)
	}
	return nil
}

func (e *Engine) DropTable(ctx context.Context, table string) error {
	if err := e.db.Collection(table).Drop(ctx); err != nil {
		return fmt.Errorf("mongodb: drop %s: %w", table, err)
	}
	return nil
}

// BulkIngest inserts rows as documents with one unordered InsertMany. The
// server has no multi-document atomicity outside transactions, so when any
// document fails the ones that did land are deleted again by _id.
func (e *Engine) BulkIngest(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	docs, ids, err := Documents(columns, rows)
	if err != nil {
		return 0, err
	}
	coll := e.db.Collection(table)
	res, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return int64(len(res.InsertedIDs)), nil
	}
	cleanup := context.WithoutCancel(ctx)
	if _, derr := coll.DeleteMany(cleanup, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}); derr != nil {
		log.WithFields(log.Fields{"engine": e.name, "collection": table, "err": derr}).
			Error("could not remove partially inserted batch")
		return 0, fmt.Errorf("mongodb: insert into %s: %w (partial batch left behind: %v)", table, err, derr)
	}
	return 0, fmt.Errorf("mongodb: insert into %s: %w", table, err)
}

// Documents converts aligned rows into bson.D documents with fresh ObjectIDs.
func Documents(columns []string, rows [][]any) ([]any, []bson.ObjectID, error) {
	docs := make([]any, len(rows))
	ids := make([]bson.ObjectID, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, nil, fmt.Errorf("mongodb: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		ids[i] = bson.NewObjectID()
		d := make(bson.D, 0, len(columns)+1)
		d = append(d, bson.E{Key: "_id", Value: ids[i]})
		for j, c := range columns {
			d = append(d, bson.E{Key: c, Value: row[j]})
		}
		docs[i] = d
	}
	return docs, ids, nil
}

// CountRows counts documents; a missing collection is ErrTableNotFound
// rather than zero.
func (e *Engine) CountRows(ctx context.Context, table string) (int64, error) {
	ok, err := e.exists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("mongodb: %w: %s", storage.ErrTableNotFound, table)
	}
	return e.db.Collection(table).CountDocuments(ctx, bson.D{})
}

func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.client.Disconnect(ctx)
}

var errNoCollection = errors.New("query must specify 'collection'")
