package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/docroute/pkg/store/mongodb"
)

// MongoExecutor runs store operations against the MongoDB database named by
// a URL. The connection comes from a shared pool and is opened on first use.
type MongoExecutor struct {
	pool *mongodb.Pool
	url  string
}

// NewMongoExecutor binds an executor to url within pool.
func NewMongoExecutor(pool *mongodb.Pool, url string) (*MongoExecutor, error) {
	if pool == nil {
		return nil, fmt.Errorf("mongodb pool is required")
	}
	if url == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	return &MongoExecutor{pool: pool, url: url}, nil
}

func (e *MongoExecutor) adapter(ctx context.Context) (*mongodb.Adapter, error) {
	return e.pool.Get(ctx, e.url)
}

func (e *MongoExecutor) Find(ctx context.Context, collection string, filter bson.M, opts FindOptions) (Cursor, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := a.Find(ctx, collection, filter, opts.Skip, opts.Limit)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, nil
	}
	return cur, nil
}

func (e *MongoExecutor) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.FindOne(ctx, collection, filter)
}

func (e *MongoExecutor) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return 0, err
	}
	return a.Count(ctx, collection, filter)
}

func (e *MongoExecutor) Distinct(ctx context.Context, collection, field string, filter bson.M) ([]any, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.Distinct(ctx, collection, field, filter)
}

func (e *MongoExecutor) Replace(ctx context.Context, collection string, id any, doc bson.M) error {
	a, err := e.adapter(ctx)
	if err != nil {
		return err
	}
	return a.Replace(ctx, collection, id, doc)
}

func (e *MongoExecutor) Delete(ctx context.Context, collection string, filter bson.M) (int64, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return 0, err
	}
	return a.DeleteMany(ctx, collection, filter)
}

func (e *MongoExecutor) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.Aggregate(ctx, collection, pipeline)
}

func (e *MongoExecutor) RunCommand(ctx context.Context, command bson.D) (bson.M, error) {
	a, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.RunCommand(ctx, command)
}
