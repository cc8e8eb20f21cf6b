// Package otel holds the span helpers and attribute keys used when tracing sync passes.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys
const (
	AttrPostID      = attribute.Key("post.id")
	AttrCommentID   = attribute.Key("comment.id")
	AttrCursor      = attribute.Key("sync.cursor")
	AttrSyncPhase   = attribute.Key("sync.phase")
	AttrResultCount = attribute.Key("result.count")
)

// Span event names
const (
	EventPhase           = "sync.phase"
	EventDetailFallback  = "sync.detail_fallback"
	EventRowAppendFailed = "sync.row_failed"
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil so callers never branch on tracing being enabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// MarkPhase records entering phase as an event on the span in ctx
func MarkPhase(ctx context.Context, phase string) {
	trace.SpanFromContext(ctx).AddEvent(EventPhase, trace.WithAttributes(AttrSyncPhase.String(phase)))
}

// AddEvent adds a named event with attrs to the span in ctx
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed. The status text stays generic because
// errors from the Graph API client can carry request URLs; the full error is
// kept on the exception event.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "operation failed")
}
