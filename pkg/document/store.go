package document

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
)

// Store persists records of one model in one collection.
//
// Reads return driver errors to the caller. Writes (Save, Remove,
// RemoveWhere, RemoveByID) and MapReduce absorb driver failures: they log
// the error once and report failure through their result. Validation
// failures are always returned as errors.
type Store struct {
	collection string
	model      *Model
	exec       Executor
	logger     logger.Logger
}

// NewStore binds a store to collection and model.
func NewStore(collection string, model *Model, exec Executor, log logger.Logger) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		collection: collection,
		model:      model,
		exec:       exec,
		logger:     log.With("collection", collection, "model", model.Name),
	}, nil
}

func (s *Store) Collection() string { return s.collection }
func (s *Store) Model() *Model      { return s.model }

// Find returns every matching record in backend order.
func (s *Store) Find(ctx context.Context, query bson.M) (records []*Record, err error) {
	ctx, done := s.begin(ctx, "find")
	defer func() { done(err) }()

	cursor, err := s.exec.Find(ctx, s.collection, normalizeQuery(query), FindOptions{})
	if err != nil || cursor == nil {
		return nil, err
	}
	return NewPagedCursor(s.model, cursor, 0, 0, 0).All(ctx)
}

// FindOne returns the first matching record, or nil.
func (s *Store) FindOne(ctx context.Context, query bson.M) (rec *Record, err error) {
	ctx, done := s.begin(ctx, "find_one")
	defer func() { done(err) }()

	doc, err := s.exec.FindOne(ctx, s.collection, normalizeQuery(query))
	if err != nil || doc == nil {
		return nil, err
	}
	return s.model.New(doc)
}

// FindByID looks a record up by identifier. id may be an ObjectID or its hex form.
func (s *Store) FindByID(ctx context.Context, id any) (*Record, error) {
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, bson.M{IDField: oid})
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, query bson.M) (n int64, err error) {
	ctx, done := s.begin(ctx, "count")
	defer func() { done(err) }()
	return s.exec.Count(ctx, s.collection, normalizeQuery(query))
}

// Distinct returns the distinct values of field among matching documents.
// The result is never nil.
func (s *Store) Distinct(ctx context.Context, field string, query bson.M) (values []any, err error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	ctx, done := s.begin(ctx, "distinct")
	defer func() { done(err) }()

	values, err = s.exec.Distinct(ctx, s.collection, field, normalizeQuery(query))
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []any{}
	}
	return values, nil
}

// PaginatedFind returns a windowed cursor. The cursor is nil only when the
// backend produced no cursor object; zero matches still yield a cursor.
func (s *Store) PaginatedFind(ctx context.Context, query bson.M, skip, limit int64) (pc *PagedCursor, err error) {
	ctx, done := s.begin(ctx, "paginated_find")
	defer func() { done(err) }()

	query = normalizeQuery(query)
	count, err := s.exec.Count(ctx, s.collection, query)
	if err != nil {
		return nil, err
	}
	cursor, err := s.exec.Find(ctx, s.collection, query, FindOptions{Skip: skip, Limit: limit})
	if err != nil || cursor == nil {
		return nil, err
	}
	return NewPagedCursor(s.model, cursor, count, skip, limit), nil
}

// Save validates and upserts rec. A record without an identifier gets a
// fresh ObjectID first; an existing identifier is never replaced.
// Driver failures yield false with a nil error.
func (s *Store) Save(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, nil
	}
	if err := s.ensureModel(rec); err != nil {
		return false, err
	}
	if err := s.validateRequired(rec); err != nil {
		return false, err
	}
	if !rec.HasID() {
		rec.SetID(NewID())
	}
	// The stored embedded documents must be byte-identical to what Remove
	// later sends as its filter.
	rec.doc = rec.ordered()

	ctx, done := s.begin(ctx, "save")
	err := s.exec.Replace(ctx, s.collection, rec.ID(), rec.Document())
	done(err)
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to save document", "id", rec.ID(), "error", err)
		return false, nil
	}
	return true, nil
}

// Remove deletes the document matching rec in full, embedded documents
// included. A record without an identifier has nothing to remove and yields
// false.
func (s *Store) Remove(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, nil
	}
	if err := s.ensureModel(rec); err != nil {
		return false, err
	}
	if !rec.HasID() {
		return false, nil
	}
	return s.delete(ctx, "remove", rec.ordered()), nil
}

// RemoveWhere deletes every matching document.
func (s *Store) RemoveWhere(ctx context.Context, query bson.M) bool {
	return s.delete(ctx, "remove_where", normalizeQuery(query))
}

// RemoveByID deletes the document with the given identifier.
func (s *Store) RemoveByID(ctx context.Context, id any) bool {
	oid, err := ObjectID(id)
	if err != nil {
		s.logger.WithContext(ctx).Warn("refusing to remove by invalid id", "error", err)
		return false
	}
	return s.RemoveWhere(ctx, bson.M{IDField: oid})
}

func (s *Store) delete(ctx context.Context, op string, filter bson.M) bool {
	ctx, done := s.begin(ctx, op)
	_, err := s.exec.Delete(ctx, s.collection, filter)
	done(err)
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to remove documents", "operation", op, "error", err)
		return false
	}
	return true
}

// Aggregate runs the pipeline as built, stage for stage.
func (s *Store) Aggregate(ctx context.Context, agg *Aggregation) (out []bson.M, err error) {
	if agg == nil {
		agg = NewAggregation()
	}
	ctx, done := s.begin(ctx, "aggregate")
	defer func() { done(err) }()
	return s.exec.Aggregate(ctx, s.collection, agg.Pipeline())
}

// MapReduce runs an inline map-reduce over the collection. mapFn and
// reduceFn are JavaScript values as returned by LoadFunction or
// primitive.JavaScript.
//
// With a non-empty override the default command is discarded: the override
// is sent as given, with inline output added when it names no "out". The
// override must therefore start with its own "mapReduce" key. A failed
// command is logged and yields nil.
func (s *Store) MapReduce(ctx context.Context, mapFn, reduceFn any, query bson.M, override bson.D) bson.M {
	inline := bson.D{{Key: "inline", Value: 1}}

	var cmd bson.D
	if len(override) > 0 {
		cmd = append(cmd, override...)
		if !hasKey(override, "out") {
			cmd = append(cmd, bson.E{Key: "out", Value: inline})
		}
	} else {
		cmd = bson.D{
			{Key: "mapReduce", Value: s.collection},
			{Key: "map", Value: mapFn},
			{Key: "reduce", Value: reduceFn},
			{Key: "out", Value: inline},
		}
		if len(query) > 0 {
			cmd = append(cmd, bson.E{Key: "query", Value: query})
		}
	}

	ctx, done := s.begin(ctx, "map_reduce")
	res, err := s.exec.RunCommand(ctx, cmd)
	if err == nil && !commandOK(res) {
		err = fmt.Errorf("map-reduce failed: %v", res["errmsg"])
	}
	done(err)
	if err != nil {
		s.logger.WithContext(ctx).Error("map-reduce error", "error", err, "result", res)
		return nil
	}
	return res
}

func (s *Store) ensureModel(rec *Record) error {
	if rec.Model() != s.model {
		return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, s.model.Name, rec.Model().Name)
	}
	return nil
}

func (s *Store) validateRequired(rec *Record) error {
	var missing []string
	for _, field := range s.model.Schema.RequiredFields() {
		if ok, err := rec.Has(field); err != nil || !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &RequiredFieldError{Model: s.model.Name, Fields: missing}
	}
	return nil
}

func (s *Store) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.StartStoreSpan(ctx, op, s.collection)
	return ctx, func(err error) {
		tracing.Finish(span, err)
		metrics.RecordStoreOperation(s.collection, op, err, time.Since(start))
	}
}

func normalizeQuery(q bson.M) bson.M {
	if q == nil {
		return bson.M{}
	}
	return q
}

func hasKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

func commandOK(res bson.M) bool {
	switch v := res["ok"].(type) {
	case float64:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case int:
		return v == 1
	case bool:
		return v
	}
	return false
}
