package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dbbench/internal/storage"
)

// Query is the extended-JSON command document RunQuery accepts:
//
//	{"collection": "people", "operation": "find", "filter": {...}, "sort": {...}, "limit": 100}
//	{"collection": "people", "operation": "aggregate", "pipeline": [...]}
//	{"collection": "people", "operation": "count", "filter": {...}}
//
// Sort and filter keep their key order.
type Query struct {
	Collection string `bson:"collection"`
	Operation  string `bson:"operation,omitempty"`
	Filter     bson.D `bson:"filter,omitempty"`
	Projection bson.D `bson:"projection,omitempty"`
	Sort       bson.D `bson:"sort,omitempty"`
	Limit      int64  `bson:"limit,omitempty"`
	Pipeline   bson.A `bson:"pipeline,omitempty"`
}

// ParseQuery decodes a relaxed extended-JSON command.
func ParseQuery(s string) (Query, error) {
	var q Query
	if err := bson.UnmarshalExtJSON([]byte(s), false, &q); err != nil {
		return Query{}, fmt.Errorf("mongodb: invalid query: %w", err)
	}
	if q.Collection == "" {
		return Query{}, errNoCollection
	}
	if q.Operation == "" {
		q.Operation = "find"
	}
	if q.Filter == nil {
		q.Filter = bson.D{}
	}
	switch q.Operation {
	case "find", "aggregate", "count":
	default:
		return Query{}, fmt.Errorf("mongodb: unsupported operation %q", q.Operation)
	}
	return q, nil
}

// RunQuery executes a read-only command and drains its cursor. count
// reports its result as Scalar.
func (e *Engine) RunQuery(ctx context.Context, query string) (storage.QueryResult, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return storage.QueryResult{}, err
	}
	coll := e.db.Collection(q.Collection)

	var cur *mongo.Cursor
	switch q.Operation {
	case "count":
		n, err := coll.CountDocuments(ctx, q.Filter)
		if err != nil {
			return storage.QueryResult{}, err
		}
		return storage.QueryResult{Rows: 1, Scalar: n, HasScalar: true}, nil
	case "aggregate":
		cur, err = coll.Aggregate(ctx, q.Pipeline)
	default:
		fo := options.Find()
		if len(q.Sort) > 0 {
			fo.SetSort(q.Sort)
		}
		if len(q.Projection) > 0 {
			fo.SetProjection(q.Projection)
		}
		if q.Limit > 0 {
			fo.SetLimit(q.Limit)
		}
		cur, err = coll.Find(ctx, q.Filter, fo)
	}
	if err != nil {
		return storage.QueryResult{}, err
	}
	defer cur.Close(context.WithoutCancel(ctx))

	var res storage.QueryResult
	for cur.Next(ctx) {
		res.Rows++
	}
	if err := cur.Err(); err != nil {
		return storage.QueryResult{}, err
	}
	return res, nil
}
