package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/docroute/pkg/testutil"
)

func TestLogging_RequestCompletion(t *testing.T) {
	log := &testutil.MockLogger{}
	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Request-ID", "req-42")
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/notes", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("User-Agent", "curl/8")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Msg != "request completed" || e.Level != "info" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	checks := map[string]interface{}{
		FieldMethod:     http.MethodPost,
		FieldPath:       "/notes",
		FieldStatus:     http.StatusCreated,
		FieldRemoteAddr: "10.0.0.1",
		FieldRequestID:  "req-42",
		FieldUserAgent:  "curl/8",
	}
	for k, want := range checks {
		if e.Fields[k] != want {
			t.Errorf("%s = %v, want %v", k, e.Fields[k], want)
		}
	}
	if _, ok := e.Fields[FieldDurationMS].(int64); !ok {
		t.Errorf("duration_ms missing: %v", e.Fields)
	}
}

func TestLogging_ServerErrorsLogAtErrorLevel(t *testing.T) {
	log := &testutil.MockLogger{}
	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if log.Count("error") != 1 || log.Count("info") != 0 {
		t.Fatalf("unexpected entries: %+v", log.Entries())
	}
}

func TestLoggingWithConfig(t *testing.T) {
	log := &testutil.MockLogger{}
	h := WithConfig(log, Config{LogStart: true, ExcludedPathPrefixes: []string{"/health"}})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
	)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if n := len(log.Entries()); n != 0 {
		t.Fatalf("excluded path logged %d entries", n)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/notes", nil))
	entries := log.Entries()
	if len(entries) != 2 || entries[0].Msg != "request started" || entries[1].Msg != "request completed" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
