package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docroute/pkg/store/mongodb"
)

// PagedCursor is a windowed query result: the total match count, a
// next-page hint and a lazy, single-pass stream of records. Re-issue the
// query to read the window again.
type PagedCursor struct {
	model   *Model
	cursor  Cursor
	count   int64
	next    int64
	hasNext bool
	current *Record
	err     error
}

// NewPagedCursor wraps cursor. The next-page hint is skip+1 whenever count
// exceeds limit, matching the legacy pagination contract.
func NewPagedCursor(model *Model, cursor Cursor, count, skip, limit int64) *PagedCursor {
	c := &PagedCursor{model: model, cursor: cursor, count: count}
	if count > limit {
		c.next, c.hasNext = skip+1, true
	}
	return c
}

// Count returns the number of documents matching the query, ignoring the window.
func (c *PagedCursor) Count() int64 { return c.count }

// NextPage returns the next-page hint and whether there is one.
func (c *PagedCursor) NextPage() (int64, bool) { return c.next, c.hasNext }

// Next advances to the next record. It returns false at the end of the
// stream or on error; check Err afterwards.
func (c *PagedCursor) Next(ctx context.Context) bool {
	if c.err != nil || c.cursor == nil {
		return false
	}
	if !c.cursor.Next(ctx) {
		c.err = c.cursor.Err()
		c.current = nil
		return false
	}
	var raw bson.Raw
	if err := c.cursor.Decode(&raw); err != nil {
		c.err = fmt.Errorf("failed to decode %s document: %w", c.model.Name, err)
		return false
	}
	doc, err := mongodb.DecodeDocument(raw)
	if err != nil {
		c.err = fmt.Errorf("failed to decode %s document: %w", c.model.Name, err)
		return false
	}
	rec, err := c.model.New(doc)
	if err != nil {
		c.err = err
		return false
	}
	c.current = rec
	return true
}

// Record returns the record loaded by the last successful Next.
func (c *PagedCursor) Record() *Record { return c.current }

// Err returns the first error met while iterating.
func (c *PagedCursor) Err() error { return c.err }

// Close releases the underlying cursor.
func (c *PagedCursor) Close(ctx context.Context) error {
	if c.cursor == nil {
		return nil
	}
	return c.cursor.Close(ctx)
}

// All drains the remaining records and closes the cursor.
func (c *PagedCursor) All(ctx context.Context) ([]*Record, error) {
	defer func() { _ = c.Close(ctx) }()
	var out []*Record
	for c.Next(ctx) {
		out = append(out, c.current)
	}
	return out, c.err
}
