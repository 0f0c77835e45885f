package document

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Cursor is a single-pass stream of raw documents. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// FindOptions windows a find. Zero values mean no skip and no limit.
type FindOptions struct {
	Skip  int64
	Limit int64
}

// Executor is the storage contract a Store runs against. MongoExecutor is
// the production implementation; documenttest.MemoryExecutor backs tests.
type Executor interface {
	// Find returns a cursor over matching documents. A nil cursor with a nil
	// error means the backend produced no cursor at all.
	Find(ctx context.Context, collection string, filter bson.M, opts FindOptions) (Cursor, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error)
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)
	Distinct(ctx context.Context, collection, field string, filter bson.M) ([]any, error)
	// Replace upserts doc under id.
	Replace(ctx context.Context, collection string, id any, doc bson.M) error
	Delete(ctx context.Context, collection string, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
	RunCommand(ctx context.Context, command bson.D) (bson.M, error)
}
