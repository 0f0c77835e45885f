package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scopes.
const (
	ScopeDocument = "github.com/nimburion/docroute/document"
	ScopeDispatch = "github.com/nimburion/docroute/dispatch"
	ScopeWorker   = "github.com/nimburion/docroute/worker"
)

// StartStoreSpan starts a client span for one document store operation,
// e.g. StartStoreSpan(ctx, "find", "notes").
func StartStoreSpan(ctx context.Context, operation, collection string) (context.Context, trace.Span) {
	name := fmt.Sprintf("DB %s", operation)
	if collection != "" {
		name = fmt.Sprintf("DB %s %s", operation, collection)
	}
	ctx, span := otel.Tracer(ScopeDocument).Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("db.operation", operation),
		attribute.String("db.mongodb.collection", collection),
	)
	return ctx, span
}

// StartDispatchSpan starts a server span around handler resolution and execution.
func StartDispatchSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(ScopeDispatch).Start(ctx, fmt.Sprintf("%s %s", method, path), trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.target", path),
	)
	return ctx, span
}

// StartWorkerSpan starts a span for scheduling or running a background worker.
func StartWorkerSpan(ctx context.Context, operation, worker string) (context.Context, trace.Span) {
	kind := trace.SpanKindConsumer
	if operation == "schedule" {
		kind = trace.SpanKindProducer
	}
	ctx, span := otel.Tracer(ScopeWorker).Start(ctx, fmt.Sprintf("worker %s %s", operation, worker), trace.WithSpanKind(kind))
	span.SetAttributes(attribute.String("worker.name", worker))
	return ctx, span
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Finish records err (if any) and ends the span.
func Finish(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}
