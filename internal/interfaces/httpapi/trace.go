package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var apiTracer = otel.Tracer("scrim-scheduler/internal/interfaces/httpapi")

// noopSpan is safe to End; callers always defer span.End().
var noopSpan = trace.SpanFromContext(context.Background())

// startSpan opens a handler span under the otelhttp request span. Health checks
// are filtered upstream, so they arrive without a parent and stay untraced.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() || !strings.HasPrefix(name, handlerSpanPrefix) {
		return ctx, noopSpan
	}
	return apiTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

const handlerSpanPrefix = "httpapi.Handler."
