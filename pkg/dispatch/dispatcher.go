package dispatch

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nimburion/docroute/pkg/middleware/cors"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/route"
)

// Listener events.
const (
	EventPreprocess    = "preprocess"
	EventControllerEnd = "controllerEnd"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

// PathInfoParam is the single parameter handed to the not-found handler.
const PathInfoParam = "path_info"

// Dispatcher is an http.Handler routing requests through a route table and
// a handler registry.
type Dispatcher struct {
	table      *route.Table
	registry   *Registry
	notFound   Factory
	listeners  map[string][]Factory
	logger     logger.Logger
	cors       cors.Config
	scriptName string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithNotFound sets the factory used when nothing resolves.
func WithNotFound(f Factory) Option { return func(d *Dispatcher) { d.notFound = f } }

func WithLogger(l logger.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithCORS overrides the preflight answer.
func WithCORS(cfg cors.Config) Option { return func(d *Dispatcher) { d.cors = cfg } }

// WithScriptName strips a mount prefix from request paths before routing.
func WithScriptName(name string) Option { return func(d *Dispatcher) { d.scriptName = name } }

// New creates a dispatcher over table and registry.
func New(table *route.Table, registry *Registry, opts ...Option) (*Dispatcher, error) {
	if table == nil {
		return nil, errors.New("route table is required")
	}
	if registry == nil {
		return nil, errors.New("handler registry is required")
	}
	d := &Dispatcher{
		table:     table,
		registry:  registry,
		notFound:  defaultNotFound,
		listeners: map[string][]Factory{},
		logger:    logger.Nop(),
		cors:      cors.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// On registers a listener built like a handler. EventPreprocess listeners run
// for every request before route selection, preflight and not-found
// included; their Request has no route params. EventControllerEnd listeners
// run after a resolved handler.
func (d *Dispatcher) On(event string, f Factory) {
	d.listeners[event] = append(d.listeners[event], f)
}

// Resolve reports which route and registry entry a request would reach.
func (d *Dispatcher) Resolve(method, path string) (*route.Match, Descriptor, Factory, bool) {
	m, ok := d.table.Select(path)
	if !ok {
		return nil, Descriptor{}, nil, false
	}
	desc := Describe(method, m.Handler)
	f, ok := d.registry.Lookup(desc)
	return m, desc, f, ok
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	ctx := logger.ContextWithRequestID(r.Context(), requestID)
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	path := route.NormalizePath(uri, d.scriptName)
	ctx, span := tracing.StartDispatchSpan(ctx, r.Method, path)
	r = r.WithContext(ctx)
	log := d.logger.WithContext(ctx)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	metrics.IncrementInFlight()
	outcome, handlerName, err := d.dispatch(rec, r, path, log)
	metrics.DecrementInFlight()

	metrics.RecordDispatch(outcome)
	metrics.RecordHTTPMetrics(r.Method, handlerName, rec.status, time.Since(start))
	tracing.Finish(span, err)
	log.Debug("request dispatched", "method", r.Method, "path", path, "outcome", outcome, "status", rec.status)
}

func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, path string, log logger.Logger) (string, string, error) {
	d.emit(EventPreprocess, w, &Request{
		Path:   path,
		Params: route.Params{},
		Files:  map[string][]*multipart.FileHeader{},
		HTTP:   r,
	})

	if cors.IsPreflight(r.Method) {
		cors.WritePreflight(w, r, d.cors)
		return metrics.OutcomePreflight, "", nil
	}

	m, desc, factory, ok := d.Resolve(r.Method, path)
	if !ok {
		d.serveNotFound(w, r, path)
		return metrics.OutcomeNotFound, "", nil
	}

	req := &Request{
		Path:       path,
		Params:     m.Params,
		Files:      map[string][]*multipart.FileHeader{},
		Restricted: false,
		HTTP:       r,
		Descriptor: desc,
	}

	h := factory(req)
	if desc.Mutator {
		if _, isMutator := h.(Mutator); !isMutator {
			err := &ConfigError{Module: desc.Module, TypeName: desc.TypeName, Err: ErrNotMutator}
			log.Error("handler misconfigured", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return metrics.OutcomeConfigFail, desc.TypeName, err
		}
	}

	h.ServeRequest(w, req)
	if !h.Done() {
		log.Warn("handler did not complete", "handler", desc.TypeName)
	}
	d.emit(EventControllerEnd, w, req)
	return metrics.OutcomeHandled, desc.TypeName, nil
}

func (d *Dispatcher) serveNotFound(w http.ResponseWriter, r *http.Request, path string) {
	req := &Request{
		Path:   path,
		Params: route.Params{PathInfoParam: {Value: path}},
		Files:  map[string][]*multipart.FileHeader{},
		HTTP:   r,
	}
	d.notFound(req).ServeRequest(w, req)
}

func (d *Dispatcher) emit(event string, w http.ResponseWriter, req *Request) {
	for _, f := range d.listeners[event] {
		f(req).ServeRequest(w, req)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

type plainNotFound struct{ done bool }

func defaultNotFound(*Request) Handler { return &plainNotFound{} }

func (h *plainNotFound) ServeRequest(w http.ResponseWriter, r *Request) {
	http.Error(w, "Invalid endpoint: "+r.Path, http.StatusNotFound)
	h.done = true
}

func (h *plainNotFound) Done() bool { return h.done }
