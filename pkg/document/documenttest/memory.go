// Package documenttest provides an in-memory document.Executor for tests.
package documenttest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/docroute/pkg/document"
)

// MemoryExecutor keeps collections in memory in insertion order. Filters
// match by top-level field equality only. Set the *Err fields to make the
// corresponding operation fail.
type MemoryExecutor struct {
	mu          sync.Mutex
	collections map[string][]bson.M

	FindErr    error
	CountErr   error
	WriteErr   error
	CommandErr error
	// NoCursor makes Find return a nil cursor and a nil error.
	NoCursor bool

	// AggregateResult is returned by Aggregate; Pipelines records every call.
	AggregateResult []bson.M
	Pipelines       []mongo.Pipeline

	// CommandReply is returned by RunCommand; Commands records every call.
	CommandReply bson.M
	Commands     []bson.D

	// Writes counts successful Replace and Delete calls.
	Writes int
	// Deletes records the filter of every Delete call.
	Deletes []bson.M
}

var _ document.Executor = (*MemoryExecutor)(nil)

// NewMemoryExecutor returns an empty executor.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{collections: map[string][]bson.M{}, CommandReply: bson.M{"ok": 1.0}}
}

// Docs returns a copy of the documents stored in collection.
func (m *MemoryExecutor) Docs(collection string) []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bson.M, 0, len(m.collections[collection]))
	for _, d := range m.collections[collection] {
		out = append(out, clone(d))
	}
	return out
}

// Insert seeds collection with docs.
func (m *MemoryExecutor) Insert(collection string, docs ...bson.M) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.collections[collection] = append(m.collections[collection], clone(d))
	}
}

func (m *MemoryExecutor) Find(_ context.Context, collection string, filter bson.M, opts document.FindOptions) (document.Cursor, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	if m.NoCursor {
		return nil, nil
	}
	matched := m.match(collection, filter)
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}
	return &SliceCursor{Docs: matched}, nil
}

func (m *MemoryExecutor) FindOne(_ context.Context, collection string, filter bson.M) (bson.M, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	matched := m.match(collection, filter)
	if len(matched) == 0 {
		return nil, nil
	}
	return matched[0], nil
}

func (m *MemoryExecutor) Count(_ context.Context, collection string, filter bson.M) (int64, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return int64(len(m.match(collection, filter))), nil
}

func (m *MemoryExecutor) Distinct(_ context.Context, collection, field string, filter bson.M) ([]any, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []any
	for _, d := range m.match(collection, filter) {
		v, ok := d[field]
		if !ok {
			continue
		}
		seen := false
		for _, o := range out {
			if reflect.DeepEqual(o, v) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MemoryExecutor) Replace(_ context.Context, collection string, id any, doc bson.M) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	docs := m.collections[collection]
	for i, d := range docs {
		if reflect.DeepEqual(d["_id"], id) {
			docs[i] = clone(doc)
			return nil
		}
	}
	m.collections[collection] = append(docs, clone(doc))
	return nil
}

func (m *MemoryExecutor) Delete(_ context.Context, collection string, filter bson.M) (int64, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	m.Deletes = append(m.Deletes, clone(filter))
	var kept []bson.M
	var n int64
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.collections[collection] = kept
	return n, nil
}

func (m *MemoryExecutor) Aggregate(_ context.Context, _ string, pipeline mongo.Pipeline) ([]bson.M, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pipelines = append(m.Pipelines, pipeline)
	if m.CommandErr != nil {
		return nil, m.CommandErr
	}
	return m.AggregateResult, nil
}

func (m *MemoryExecutor) RunCommand(_ context.Context, command bson.D) (bson.M, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, command)
	if m.CommandErr != nil {
		return nil, m.CommandErr
	}
	return m.CommandReply, nil
}

func (m *MemoryExecutor) match(collection string, filter bson.M) []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bson.M
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			out = append(out, clone(d))
		}
	}
	return out
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func clone(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// SliceCursor iterates over a fixed list of documents.
type SliceCursor struct {
	Docs   []bson.M
	pos    int
	Closed bool
}

func (c *SliceCursor) Next(context.Context) bool {
	if c.Closed || c.pos >= len(c.Docs) {
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Decode(v any) error {
	if c.pos == 0 || c.pos > len(c.Docs) {
		return fmt.Errorf("no current document")
	}
	data, err := bson.Marshal(c.Docs[c.pos-1])
	if err != nil {
		return err
	}
	if raw, ok := v.(*bson.Raw); ok {
		*raw = data
		return nil
	}
	return bson.Unmarshal(data, v)
}

func (c *SliceCursor) Err() error { return nil }

func (c *SliceCursor) Close(context.Context) error {
	c.Closed = true
	return nil
}
