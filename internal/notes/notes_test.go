package notes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docroute/pkg/controller"
	"github.com/nimburion/docroute/pkg/dispatch"
	"github.com/nimburion/docroute/pkg/document/documenttest"
	"github.com/nimburion/docroute/pkg/worker"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

type recordingScheduler struct {
	scheduled []worker.Worker
}

func (s *recordingScheduler) Schedule(ctx context.Context, w worker.Worker) error {
	if err := w.BeforeRun(ctx); err != nil {
		return err
	}
	s.scheduled = append(s.scheduled, w)
	return nil
}

type app struct {
	t        *testing.T
	exec     *documenttest.MemoryExecutor
	handlers *Handlers
	sched    *recordingScheduler
	server   http.Handler
}

func newApp(t *testing.T) *app {
	t.Helper()
	exec := documenttest.NewMemoryExecutor()
	sched := &recordingScheduler{}
	h, err := NewHandlers(exec, WithScheduler(sched))
	if err != nil {
		t.Fatalf("NewHandlers() error = %v", err)
	}
	reg := dispatch.NewRegistry()
	if err := h.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	table, err := Routes()
	if err != nil {
		t.Fatalf("Routes() error = %v", err)
	}
	d, err := dispatch.New(table, reg, dispatch.WithNotFound(controller.NotFound))
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	return &app{t: t, exec: exec, handlers: h, sched: sched, server: d}
}

func (a *app) do(method, target, body string) (int, envelope) {
	a.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: invalid JSON %q: %v", method, target, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func (a *app) create(title, body string, tags ...string) Note {
	a.t.Helper()
	payload, _ := json.Marshal(map[string]any{"title": title, "body": body, "tags": tags})
	status, env := a.do(http.MethodPost, "/notes", string(payload))
	if status != http.StatusCreated || !env.Success {
		a.t.Fatalf("create: %d %+v", status, env)
	}
	var n Note
	if err := json.Unmarshal(env.Data, &n); err != nil {
		a.t.Fatalf("decode note: %v", err)
	}
	return n
}

func TestRoutes_Compile(t *testing.T) {
	table, err := Routes()
	if err != nil {
		t.Fatalf("Routes() error = %v", err)
	}
	m, ok := table.Select("/notes/tags")
	if !ok || m.Handler != "notes/tags" {
		t.Fatalf("/notes/tags selected %+v", m)
	}
	m, ok = table.Select("/notes/64b7f0c2a1b2c3d4e5f60718")
	if !ok || m.Handler != "notes/note" {
		t.Fatalf("/notes/:id selected %+v", m)
	}
}

func TestNotes_CreateGetUpdateDelete(t *testing.T) {
	a := newApp(t)

	n := a.create("  Groceries ", "milk eggs bread", "Home", " ")
	if n.ID.IsZero() || n.Title != "Groceries" || len(n.Tags) != 1 || n.Tags[0] != "home" {
		t.Fatalf("unexpected note: %+v", n)
	}
	if len(a.sched.scheduled) != 1 {
		t.Fatalf("expected a summary job, got %d", len(a.sched.scheduled))
	}

	status, env := a.do(http.MethodGet, "/notes/"+n.ID.Hex(), "")
	if status != http.StatusOK || !env.Success {
		t.Fatalf("get: %d %+v", status, env)
	}

	status, env = a.do(http.MethodPut, "/notes/"+n.ID.Hex(), `{"title":"Shopping","body":"milk"}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("update: %d %+v", status, env)
	}
	var updated Note
	_ = json.Unmarshal(env.Data, &updated)
	if updated.Title != "Shopping" || updated.ID != n.ID || !updated.CreatedAt.Equal(n.CreatedAt) {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if docs := a.exec.Docs(Collection); len(docs) != 1 {
		t.Fatalf("update must replace in place, have %d docs", len(docs))
	}

	status, _ = a.do(http.MethodDelete, "/notes/"+n.ID.Hex(), "")
	if status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}
	if docs := a.exec.Docs(Collection); len(docs) != 0 {
		t.Fatalf("expected empty collection, have %d", len(docs))
	}

	status, env = a.do(http.MethodGet, "/notes/"+n.ID.Hex(), "")
	if status != http.StatusNotFound || env.Success || env.Message != "note not found" {
		t.Fatalf("get after delete: %d %+v", status, env)
	}
}

func TestNotes_Validation(t *testing.T) {
	a := newApp(t)

	tests := []struct {
		name, method, target, body string
		want                       int
	}{
		{"missing title", http.MethodPost, "/notes", `{"body":"x"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/notes", `{`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/notes/not-an-id", "", http.StatusBadRequest},
		{"bad paging", http.MethodGet, "/notes?limit=-1", "", http.StatusBadRequest},
		{"unknown id", http.MethodDelete, "/notes/64b7f0c2a1b2c3d4e5f60718", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/archive", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := a.do(tt.method, tt.target, tt.body)
			if status != tt.want || env.Success {
				t.Fatalf("%s %s = %d %+v, want %d", tt.method, tt.target, status, env, tt.want)
			}
		})
	}
	if len(a.exec.Docs(Collection)) != 0 {
		t.Fatal("failed requests must not write")
	}
}

func TestNotes_ListPaging(t *testing.T) {
	a := newApp(t)
	for _, title := range []string{"a", "b", "c"} {
		a.create(title, "")
	}

	status, env := a.do(http.MethodGet, "/notes?skip=0&limit=2", "")
	if status != http.StatusOK {
		t.Fatalf("list: %d %+v", status, env)
	}
	var list noteList
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 3 || len(list.Notes) != 2 || list.Next == nil || *list.Next != 1 {
		t.Fatalf("unexpected page: %+v", list)
	}

	_, env = a.do(http.MethodGet, "/notes?limit=10", "")
	list = noteList{}
	_ = json.Unmarshal(env.Data, &list)
	if list.Count != 3 || len(list.Notes) != 3 || list.Next != nil {
		t.Fatalf("unexpected full page: %+v", list)
	}
}

func TestNotes_Statistics(t *testing.T) {
	a := newApp(t)
	a.create("one", "a b", "work")
	a.create("two", "c", "work")
	a.create("three", "", "home")

	status, env := a.do(http.MethodGet, "/notes/tags", "")
	if status != http.StatusOK || !strings.Contains(string(env.Data), "work") {
		t.Fatalf("tags: %d %s", status, env.Data)
	}

	a.exec.AggregateResult = []bson.M{{"_id": "work", "count": int32(2)}, {"_id": "home", "count": int32(1)}}
	status, env = a.do(http.MethodGet, "/notes/stats/tags", "")
	if status != http.StatusOK {
		t.Fatalf("tag stats: %d %+v", status, env)
	}
	var counts []tagCount
	_ = json.Unmarshal(env.Data, &counts)
	if len(counts) != 2 || counts[0].Tag != "work" || counts[0].Count != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	pipeline := a.exec.Pipelines[0]
	if len(pipeline) != 3 || pipeline[0][0].Key != "$unwind" || pipeline[1][0].Key != "$group" {
		t.Fatalf("unexpected pipeline: %v", pipeline)
	}

	a.exec.CommandReply = bson.M{"ok": 1.0, "results": bson.A{bson.M{"_id": "work", "value": 3.0}}}
	status, env = a.do(http.MethodGet, "/notes/stats/words", "")
	if status != http.StatusOK || !strings.Contains(string(env.Data), `"value":3`) {
		t.Fatalf("word stats: %d %s", status, env.Data)
	}
	cmd := a.exec.Commands[0]
	if cmd[0].Key != "mapReduce" || cmd[0].Value != Collection {
		t.Fatalf("unexpected command: %v", cmd)
	}

	a.exec.CommandReply = bson.M{"ok": 0.0, "errmsg": "mapReduce disabled"}
	if status, _ := a.do(http.MethodGet, "/notes/stats/words", ""); status != http.StatusInternalServerError {
		t.Fatalf("failed map-reduce = %d", status)
	}
}

func TestNotes_PreflightAndReaderOnlyVerbs(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodOptions, "/notes", nil)
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %v", w.Code, w.Header())
	}

	// no PUT controller for the collection route
	if status, _ := a.do(http.MethodPut, "/notes", `{"title":"x"}`); status != http.StatusNotFound {
		t.Fatalf("PUT /notes = %d", status)
	}
}

func TestSummaryWorker(t *testing.T) {
	a := newApp(t)
	n := a.create("essay", "one two three four")

	w := a.sched.scheduled[0].(*SummaryWorker)
	if w.NoteID != n.ID.Hex() {
		t.Fatalf("NoteID = %q", w.NoteID)
	}

	bound := SummaryFactory(a.handlers.Store())().(*SummaryWorker)
	bound.NoteID = w.NoteID
	if err := bound.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rec, _ := a.handlers.Store().FindByID(context.Background(), n.ID)
	if words, _ := rec.Get("words"); words != 4 {
		t.Fatalf("words = %v", words)
	}

	if err := (&SummaryWorker{NoteID: "nope"}).BeforeRun(context.Background()); err == nil {
		t.Fatal("expected precheck failure")
	}
	if !bound.ShouldRetry() {
		t.Fatal("summary worker retries")
	}

	// a note deleted before the job ran is not an error
	a.do(http.MethodDelete, "/notes/"+n.ID.Hex(), "")
	if err := bound.Run(context.Background()); err != nil {
		t.Fatalf("Run() after delete error = %v", err)
	}
}
