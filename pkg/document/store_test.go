package document_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/docroute/pkg/document"
	"github.com/nimburion/docroute/pkg/document/documenttest"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/store/mongodb"
	"github.com/nimburion/docroute/pkg/testutil"
)

const coll = "people"

var personModel = document.MustModel("person", document.Schema{
	"name": document.Field,
	"age":  document.Required,
}, false)

func newStore(t *testing.T) (*document.Store, *documenttest.MemoryExecutor, *testutil.MockLogger) {
	t.Helper()
	exec := documenttest.NewMemoryExecutor()
	log := &testutil.MockLogger{}
	s, err := document.NewStore(coll, personModel, exec, log)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s, exec, log
}

func mustRecord(t *testing.T, doc bson.M) *document.Record {
	t.Helper()
	rec, err := personModel.New(doc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return rec
}

func TestNewStore_Validation(t *testing.T) {
	exec := documenttest.NewMemoryExecutor()
	if _, err := document.NewStore("", personModel, exec, nil); err == nil {
		t.Fatal("expected error for empty collection")
	}
	if _, err := document.NewStore(coll, nil, exec, nil); err == nil {
		t.Fatal("expected error for nil model")
	}
	if _, err := document.NewStore(coll, personModel, nil, nil); err == nil {
		t.Fatal("expected error for nil executor")
	}
	if _, err := document.NewStore(coll, personModel, exec, nil); err != nil {
		t.Fatalf("nil logger must default to Nop: %v", err)
	}
}

func TestStore_SaveMissingRequiredFieldWritesNothing(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()
	rec := mustRecord(t, bson.M{"name": "no age"})

	ok, err := s.Save(ctx, rec)
	if ok {
		t.Fatal("Save() = true, want false")
	}
	var rfe *document.RequiredFieldError
	if !errors.As(err, &rfe) || !errors.Is(err, document.ErrFieldRequired) {
		t.Fatalf("Save() error = %v, want RequiredFieldError", err)
	}
	if len(rfe.Fields) != 1 || rfe.Fields[0] != "age" {
		t.Fatalf("missing = %v", rfe.Fields)
	}
	if rec.HasID() {
		t.Fatal("validation failure must not assign an id")
	}

	found, err := s.Find(ctx, bson.M{"name": "no age"})
	if err != nil || len(found) != 0 {
		t.Fatalf("Find() = %v, %v; want no documents", found, err)
	}
	if exec.Writes != 0 {
		t.Fatalf("Writes = %d, want 0", exec.Writes)
	}
}

func TestStore_SaveAssignsIDOnce(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()
	rec := mustRecord(t, bson.M{"name": "Ada", "age": 36})

	if ok, err := s.Save(ctx, rec); !ok || err != nil {
		t.Fatalf("Save() = %v, %v", ok, err)
	}
	first := rec.ID()
	if _, isOID := first.(primitive.ObjectID); !isOID {
		t.Fatalf("ID() = %T, want ObjectID", first)
	}

	_ = rec.Set("age", 37)
	if ok, err := s.Save(ctx, rec); !ok || err != nil {
		t.Fatalf("second Save() = %v, %v", ok, err)
	}
	if rec.ID() != first {
		t.Fatalf("id changed from %v to %v", first, rec.ID())
	}
	if docs := exec.Docs(coll); len(docs) != 1 || docs[0]["age"] != 37 {
		t.Fatalf("stored docs = %v, want one updated document", docs)
	}
}

func TestStore_SaveKeepsExistingID(t *testing.T) {
	s, _, _ := newStore(t)
	rec := mustRecord(t, bson.M{"_id": "custom", "age": 1})
	if ok, _ := s.Save(context.Background(), rec); !ok {
		t.Fatal("Save() = false")
	}
	if rec.ID() != "custom" {
		t.Fatalf("ID() = %v", rec.ID())
	}
}

func TestStore_TypeMismatch(t *testing.T) {
	s, _, _ := newStore(t)
	other := document.MustModel("other", document.Schema{}, false)
	rec, _ := other.New(bson.M{"_id": document.NewID()})

	if ok, err := s.Save(context.Background(), rec); ok || !errors.Is(err, document.ErrTypeMismatch) {
		t.Fatalf("Save() = %v, %v; want ErrTypeMismatch", ok, err)
	}
	if ok, err := s.Remove(context.Background(), rec); ok || !errors.Is(err, document.ErrTypeMismatch) {
		t.Fatalf("Remove() = %v, %v; want ErrTypeMismatch", ok, err)
	}
}

func TestStore_DriverFailureIsAbsorbed(t *testing.T) {
	s, exec, log := newStore(t)
	exec.WriteErr = errors.New("connection reset")
	ctx := context.Background()

	ok, err := s.Save(ctx, mustRecord(t, bson.M{"age": 1}))
	if ok || err != nil {
		t.Fatalf("Save() = %v, %v; want false, nil", ok, err)
	}
	if s.RemoveWhere(ctx, bson.M{"age": 1}) {
		t.Fatal("RemoveWhere() = true on driver failure")
	}
	if got := log.Count("error"); got != 2 {
		t.Fatalf("error logs = %d, want 2", got)
	}
}

func TestStore_FindAndCount(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()
	id := document.NewID()
	exec.Insert(coll,
		bson.M{"_id": id, "name": "a", "age": 1},
		bson.M{"_id": document.NewID(), "name": "b", "age": 2},
		bson.M{"_id": document.NewID(), "name": "c", "age": 1},
	)

	all, err := s.Find(ctx, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("Find() = %d records, %v", len(all), err)
	}
	if name, _ := all[2].Get("name"); name != "c" {
		t.Fatalf("order not preserved: last = %v", name)
	}
	if all[0].Model() != personModel {
		t.Fatal("records must be bound to the store model")
	}

	if n, err := s.Count(ctx, bson.M{"age": 1}); err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	rec, err := s.FindByID(ctx, id.Hex())
	if err != nil || rec == nil {
		t.Fatalf("FindByID() = %v, %v", rec, err)
	}
	if name, _ := rec.Get("name"); name != "a" {
		t.Fatalf("FindByID() name = %v", name)
	}
	if _, err := s.FindByID(ctx, "not-hex"); !errors.Is(err, document.ErrInvalidID) {
		t.Fatalf("FindByID(bad) error = %v", err)
	}
	if rec, err := s.FindOne(ctx, bson.M{"name": "zzz"}); rec != nil || err != nil {
		t.Fatalf("FindOne(none) = %v, %v", rec, err)
	}

	exec.FindErr = errors.New("boom")
	if _, err := s.Find(ctx, nil); err == nil {
		t.Fatal("read errors must propagate")
	}
}

func TestStore_Distinct(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()

	values, err := s.Distinct(ctx, "name", nil)
	if err != nil || values == nil || len(values) != 0 {
		t.Fatalf("Distinct(empty) = %#v, %v; want empty non-nil", values, err)
	}

	exec.Insert(coll, bson.M{"name": "a"}, bson.M{"name": "a"}, bson.M{"name": "b"})
	values, _ = s.Distinct(ctx, "name", nil)
	if len(values) != 2 {
		t.Fatalf("Distinct() = %v", values)
	}
	if _, err := s.Distinct(ctx, "", nil); !errors.Is(err, document.ErrEmptyField) {
		t.Fatalf("Distinct(\"\") error = %v", err)
	}
}

func TestStore_Remove(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()

	unsaved := mustRecord(t, bson.M{"age": 1})
	if ok, err := s.Remove(ctx, unsaved); ok || err != nil {
		t.Fatalf("Remove(unsaved) = %v, %v; want false, nil", ok, err)
	}

	rec := mustRecord(t, bson.M{"name": "a", "age": 1})
	_, _ = s.Save(ctx, rec)
	keep := mustRecord(t, bson.M{"name": "b", "age": 1})
	_, _ = s.Save(ctx, keep)

	if ok, err := s.Remove(ctx, rec); !ok || err != nil {
		t.Fatalf("Remove() = %v, %v", ok, err)
	}
	if docs := exec.Docs(coll); len(docs) != 1 || docs[0]["name"] != "b" {
		t.Fatalf("remaining = %v", docs)
	}

	if !s.RemoveByID(ctx, keep.ID()) {
		t.Fatal("RemoveByID() = false")
	}
	if len(exec.Docs(coll)) != 0 {
		t.Fatal("expected empty collection")
	}
	if s.RemoveByID(ctx, 42) {
		t.Fatal("RemoveByID(invalid) = true")
	}
}

func TestStore_RemoveMatchesEmbeddedDocuments(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()

	meta := bson.D{{Key: "z", Value: 1}, {Key: "y", Value: 2}, {Key: "x", Value: 3}, {Key: "w", Value: 4}, {Key: "v", Value: 5}}
	stored := bson.M{"_id": primitive.NewObjectID(), "name": "a", "age": 1, "meta": meta}
	want, _ := bson.Marshal(bson.D{{Key: "meta", Value: meta}})

	load := []struct {
		name string
		get  func(t *testing.T) *document.Record
	}{
		{"cursor", func(t *testing.T) *document.Record {
			pc, err := s.PaginatedFind(ctx, nil, 0, 10)
			if err != nil || !pc.Next(ctx) {
				t.Fatalf("PaginatedFind() = %v, %v", pc, err)
			}
			defer func() { _ = pc.Close(ctx) }()
			return pc.Record()
		}},
		{"find by id", func(t *testing.T) *document.Record {
			rec, err := s.FindByID(ctx, stored["_id"])
			if err != nil || rec == nil {
				t.Fatalf("FindByID() = %v, %v", rec, err)
			}
			return rec
		}},
	}
	for _, l := range load {
		t.Run(l.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				exec.Insert(coll, stored)
				rec := l.get(t)
				if ok, err := s.Remove(ctx, rec); !ok || err != nil {
					t.Fatalf("Remove() = %v, %v", ok, err)
				}
				filter := exec.Deletes[len(exec.Deletes)-1]
				got, err := bson.Marshal(bson.D{{Key: "meta", Value: filter["meta"]}})
				if err != nil {
					t.Fatalf("Marshal() error = %v", err)
				}
				if !bytes.Equal(got, want) {
					t.Fatalf("iteration %d: filter reordered the embedded document", i)
				}
				if docs := exec.Docs(coll); len(docs) != 0 {
					t.Fatalf("iteration %d: document not removed: %v", i, docs)
				}
			}
		})
	}
}

func TestStore_SaveOrdersEmbeddedMaps(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()

	rec := mustRecord(t, bson.M{"age": 1, "meta": bson.M{"b": 1, "a": map[string]any{"d": 1, "c": 2}}})
	if ok, err := s.Save(ctx, rec); !ok || err != nil {
		t.Fatalf("Save() = %v, %v", ok, err)
	}
	want := bson.D{{Key: "a", Value: bson.D{{Key: "c", Value: 2}, {Key: "d", Value: 1}}}, {Key: "b", Value: 1}}
	if docs := exec.Docs(coll); len(docs) != 1 || !reflect.DeepEqual(docs[0]["meta"], want) {
		t.Fatalf("stored = %v", docs)
	}
	if ok, err := s.Remove(ctx, rec); !ok || err != nil {
		t.Fatalf("Remove() = %v, %v", ok, err)
	}
	if docs := exec.Docs(coll); len(docs) != 0 {
		t.Fatalf("remaining = %v", docs)
	}
}

func TestStore_PaginatedFind(t *testing.T) {
	s, exec, _ := newStore(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		exec.Insert(coll, bson.M{"_id": document.NewID(), "age": i})
	}

	pc, err := s.PaginatedFind(ctx, nil, 0, 10)
	if err != nil || pc == nil {
		t.Fatalf("PaginatedFind() = %v, %v", pc, err)
	}
	if pc.Count() != 25 {
		t.Fatalf("Count() = %d", pc.Count())
	}
	if next, ok := pc.NextPage(); !ok || next != 1 {
		t.Fatalf("NextPage() = %d, %v; want 1, true", next, ok)
	}
	records, err := pc.All(ctx)
	if err != nil || len(records) != 10 {
		t.Fatalf("All() = %d, %v", len(records), err)
	}

	empty, err := s.PaginatedFind(ctx, bson.M{"age": "none"}, 0, 10)
	if err != nil || empty == nil {
		t.Fatalf("zero matches must still yield a cursor: %v, %v", empty, err)
	}
	if _, ok := empty.NextPage(); ok {
		t.Fatal("NextPage() on empty result")
	}

	exec.NoCursor = true
	if pc, err := s.PaginatedFind(ctx, nil, 0, 10); pc != nil || err != nil {
		t.Fatalf("PaginatedFind(no cursor) = %v, %v; want nil, nil", pc, err)
	}
}

func TestStore_Aggregate(t *testing.T) {
	s, exec, _ := newStore(t)
	exec.AggregateResult = []bson.M{{"_id": "a", "n": 2}}

	agg := document.NewAggregation().Match(bson.M{}).Group(bson.M{"_id": "$name", "n": document.Sum(1)})
	out, err := s.Aggregate(context.Background(), agg)
	if err != nil || len(out) != 1 {
		t.Fatalf("Aggregate() = %v, %v", out, err)
	}
	if got := exec.Pipelines[0]; len(got) != 1 || got[0][0].Key != "$group" {
		t.Fatalf("forwarded pipeline = %v", got)
	}
}

func TestStore_MapReduce(t *testing.T) {
	mapFn := primitive.JavaScript("function() { emit(this.name, 1); }")
	reduceFn := primitive.JavaScript("function(k, v) { return Array.sum(v); }")
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		s, exec, _ := newStore(t)
		res := s.MapReduce(ctx, mapFn, reduceFn, bson.M{"age": 1}, nil)
		if res == nil {
			t.Fatal("MapReduce() = nil")
		}
		cmd := exec.Commands[0]
		keys := []string{"mapReduce", "map", "reduce", "out", "query"}
		if len(cmd) != len(keys) {
			t.Fatalf("command = %v", cmd)
		}
		for i, k := range keys {
			if cmd[i].Key != k {
				t.Fatalf("command key %d = %s, want %s", i, cmd[i].Key, k)
			}
		}
		if cmd[0].Value != coll {
			t.Fatalf("mapReduce target = %v", cmd[0].Value)
		}
	})

	t.Run("override replaces defaults", func(t *testing.T) {
		s, exec, _ := newStore(t)
		override := bson.D{{Key: "mapReduce", Value: "archive"}, {Key: "map", Value: mapFn}, {Key: "reduce", Value: reduceFn}}
		_ = s.MapReduce(ctx, nil, nil, bson.M{"ignored": true}, override)
		cmd := exec.Commands[0]
		if cmd[0].Value != "archive" || len(cmd) != 4 || cmd[3].Key != "out" {
			t.Fatalf("command = %v", cmd)
		}
	})

	t.Run("failure yields nil", func(t *testing.T) {
		s, exec, log := newStore(t)
		exec.CommandReply = bson.M{"ok": 0.0, "errmsg": "bad map"}
		if res := s.MapReduce(ctx, mapFn, reduceFn, nil, nil); res != nil {
			t.Fatalf("MapReduce() = %v, want nil", res)
		}
		if log.Count("error") != 1 {
			t.Fatal("expected one error log")
		}
	})
}

func TestStore_Integration(t *testing.T) {
	url := testutil.RequireMongo(t)
	pool := mongodb.NewPool(mongodb.PoolConfig{}, logger.Nop())
	defer pool.Close()
	exec, err := document.NewMongoExecutor(pool, url)
	if err != nil {
		t.Fatalf("NewMongoExecutor() error = %v", err)
	}
	s, err := document.NewStore("people_integration", personModel, exec, logger.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	s.RemoveWhere(ctx, nil)

	rec := mustRecord(t, bson.M{"name": "Ada", "age": 36})
	if ok, err := s.Save(ctx, rec); !ok || err != nil {
		t.Fatalf("Save() = %v, %v", ok, err)
	}
	got, err := s.FindByID(ctx, rec.ID())
	if err != nil || got == nil {
		t.Fatalf("FindByID() = %v, %v", got, err)
	}
	pc, err := s.PaginatedFind(ctx, nil, 0, 10)
	if err != nil || pc.Count() != 1 {
		t.Fatalf("PaginatedFind() = %v, %v", pc, err)
	}
	if ok, _ := s.Remove(ctx, got); !ok {
		t.Fatal("Remove() = false")
	}

	nested := mustRecord(t, bson.M{
		"name": "Grace",
		"age":  85,
		"meta": bson.M{"zeta": 1, "alpha": 2, "mid": bson.M{"y": 1, "b": 2}},
	})
	if ok, err := s.Save(ctx, nested); !ok || err != nil {
		t.Fatalf("Save() nested = %v, %v", ok, err)
	}
	for i := 0; i < 10; i++ {
		loaded, err := s.FindByID(ctx, nested.ID())
		if err != nil || loaded == nil {
			t.Fatalf("FindByID() nested = %v, %v", loaded, err)
		}
		if i < 9 {
			continue
		}
		if ok, err := s.Remove(ctx, loaded); !ok || err != nil {
			t.Fatalf("Remove() nested = %v, %v", ok, err)
		}
	}
	if n, err := s.Count(ctx, nil); err != nil || n != 0 {
		t.Fatalf("Count() after Remove = %d, %v", n, err)
	}
}
