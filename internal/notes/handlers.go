package notes

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docroute/pkg/controller"
	"github.com/nimburion/docroute/pkg/dispatch"
	"github.com/nimburion/docroute/pkg/document"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/worker"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Scheduler enqueues background workers.
type Scheduler interface {
	Schedule(ctx context.Context, w worker.Worker) error
}

// Handlers serves the notes routes from a Store.
type Handlers struct {
	store     *document.Store
	functions fs.FS
	scheduler Scheduler
	log       logger.Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithFunctions replaces the built-in map/reduce sources.
func WithFunctions(fsys fs.FS) Option { return func(h *Handlers) { h.functions = fsys } }

// WithScheduler enables the word-count worker on create and update.
func WithScheduler(s Scheduler) Option { return func(h *Handlers) { h.scheduler = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(h *Handlers) { h.log = l } }

// NewHandlers returns handlers backed by exec.
func NewHandlers(exec document.Executor, opts ...Option) (*Handlers, error) {
	h := &Handlers{functions: Functions(), log: logger.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	store, err := document.NewStore(Collection, Model, exec, h.log)
	if err != nil {
		return nil, err
	}
	h.store = store
	return h, nil
}

// Store returns the notes store.
func (h *Handlers) Store() *document.Store { return h.store }

// Register binds every notes controller in reg.
func (h *Handlers) Register(reg *dispatch.Registry) error {
	return errors.Join(
		reg.Reader("notes", controller.Reader(h.list)),
		reg.Mutator("notes", http.MethodPost, controller.Mutator(http.StatusCreated, h.create)),
		reg.Reader("notes/note", controller.Reader(h.get)),
		reg.Mutator("notes/note", http.MethodPut, controller.Mutator(http.StatusOK, h.update)),
		reg.Mutator("notes/note", http.MethodDelete, controller.Mutator(http.StatusOK, h.remove)),
		reg.Reader("notes/tags", controller.Reader(h.tags)),
		reg.Reader("notes/stats/tags", controller.Reader(h.tagStats)),
		reg.Reader("notes/stats/words", controller.Reader(h.wordStats)),
	)
}

type noteInput struct {
	Title string   `json:"title" validate:"required"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

func (in *noteInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	tags := in.Tags[:0]
	for _, t := range in.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags
}

type noteList struct {
	Count int64  `json:"count"`
	Next  *int64 `json:"next"`
	Notes []Note `json:"notes"`
}

func (h *Handlers) list(ctx context.Context, r *dispatch.Request) (any, error) {
	q := r.HTTP.URL.Query()
	skip, err := intParam(q.Get("skip"), 0)
	if err != nil {
		return nil, err
	}
	limit, err := intParam(q.Get("limit"), defaultLimit)
	if err != nil {
		return nil, err
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := bson.M{}
	if tag := q.Get("tag"); tag != "" {
		query["tags"] = tag
	}

	cursor, err := h.store.PaginatedFind(ctx, query, skip, limit)
	if err != nil {
		return nil, err
	}
	out := noteList{Notes: []Note{}}
	if cursor == nil {
		return out, nil
	}
	defer func() { _ = cursor.Close(ctx) }()

	out.Count = cursor.Count()
	if next, ok := cursor.NextPage(); ok {
		out.Next = &next
	}
	for cursor.Next(ctx) {
		var n Note
		if err := cursor.Record().Decode(&n); err != nil {
			return nil, err
		}
		out.Notes = append(out.Notes, n)
	}
	return out, cursor.Err()
}

func (h *Handlers) get(ctx context.Context, r *dispatch.Request) (any, error) {
	rec, err := h.find(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeNote(rec)
}

func (h *Handlers) create(ctx context.Context, r *dispatch.Request) (any, error) {
	var in noteInput
	if err := controller.DecodeJSON(r.HTTP, &in); err != nil {
		return nil, err
	}
	in.normalize()

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec, err := document.FromStruct(Model, Note{
		Title:     in.Title,
		Body:      in.Body,
		Tags:      in.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}, true)
	if err != nil {
		return nil, err
	}
	if err := h.save(ctx, rec); err != nil {
		return nil, err
	}
	h.scheduleSummary(ctx, rec)

	return decodeNote(rec)
}

func (h *Handlers) update(ctx context.Context, r *dispatch.Request) (any, error) {
	var in noteInput
	if err := controller.DecodeJSON(r.HTTP, &in); err != nil {
		return nil, err
	}
	in.normalize()

	rec, err := h.find(ctx, r)
	if err != nil {
		return nil, err
	}
	for field, value := range map[string]any{
		"title":      in.Title,
		"body":       in.Body,
		"tags":       in.Tags,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	} {
		if err := rec.Set(field, value); err != nil {
			return nil, err
		}
	}
	if err := h.save(ctx, rec); err != nil {
		return nil, err
	}
	h.scheduleSummary(ctx, rec)

	return decodeNote(rec)
}

func (h *Handlers) remove(ctx context.Context, r *dispatch.Request) (any, error) {
	rec, err := h.find(ctx, r)
	if err != nil {
		return nil, err
	}
	ok, err := h.store.Remove(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, controller.NewInternalError("note could not be removed", nil)
	}
	return map[string]string{"id": controller.Param(r, "id")}, nil
}

func (h *Handlers) tags(ctx context.Context, _ *dispatch.Request) (any, error) {
	return h.store.Distinct(ctx, "tags", nil)
}

type tagCount struct {
	Tag   string `bson:"_id" json:"tag"`
	Count int64  `bson:"count" json:"count"`
}

func (h *Handlers) tagStats(ctx context.Context, _ *dispatch.Request) (any, error) {
	agg := document.NewAggregation().
		Unwind("tags").
		Group(bson.M{"_id": "$tags", "count": document.Sum(1)}).
		SortBy(bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}})

	rows, err := h.store.Aggregate(ctx, agg)
	if err != nil {
		return nil, err
	}
	out := make([]tagCount, 0, len(rows))
	for _, row := range rows {
		var tc tagCount
		data, err := bson.Marshal(row)
		if err != nil {
			return nil, err
		}
		if err := bson.Unmarshal(data, &tc); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, nil
}

func (h *Handlers) wordStats(ctx context.Context, _ *dispatch.Request) (any, error) {
	mapFn, err := document.LoadFunction(h.functions, "words_map", nil)
	if err != nil {
		return nil, controller.NewInternalError("map function unavailable", err)
	}
	reduceFn, err := document.LoadFunction(h.functions, "words_reduce", nil)
	if err != nil {
		return nil, controller.NewInternalError("reduce function unavailable", err)
	}
	res := h.store.MapReduce(ctx, mapFn, reduceFn, nil, nil)
	if res == nil {
		return nil, controller.NewInternalError("word statistics failed", nil)
	}
	results, ok := res["results"]
	if !ok {
		return []any{}, nil
	}
	return results, nil
}

func (h *Handlers) find(ctx context.Context, r *dispatch.Request) (*document.Record, error) {
	rec, err := h.store.FindByID(ctx, controller.Param(r, "id"))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, controller.NewNotFoundError("note not found")
	}
	return rec, nil
}

func (h *Handlers) save(ctx context.Context, rec *document.Record) error {
	ok, err := h.store.Save(ctx, rec)
	if err != nil {
		return err
	}
	if !ok {
		return controller.NewInternalError("note could not be saved", nil)
	}
	return nil
}

// scheduleSummary is best effort: the note is already stored.
func (h *Handlers) scheduleSummary(ctx context.Context, rec *document.Record) {
	if h.scheduler == nil {
		return
	}
	oid, err := document.ObjectID(rec.ID())
	if err != nil {
		return
	}
	if err := h.scheduler.Schedule(ctx, &SummaryWorker{NoteID: oid.Hex()}); err != nil {
		h.log.WithContext(ctx).Warn("failed to schedule note summary", "note_id", oid.Hex(), "error", err)
	}
}

func decodeNote(rec *document.Record) (Note, error) {
	var n Note
	err := rec.Decode(&n)
	return n, err
}

func intParam(raw string, fallback int64) (int64, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, controller.NewValidationError("invalid paging parameter: " + raw)
	}
	return n, nil
}
