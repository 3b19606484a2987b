package oteltrace

import (
	"context"
	"slices"

	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct {
	t      trace.Tracer
	common []attribute.KeyValue
}

// New returns a tracer bound to the global otel provider. Every span it starts
// carries common. Spans are no-ops until main installs an sdktrace.TracerProvider.
func New(name string, common ...attribute.KeyValue) observability.Tracer {
	if name == "" {
		name = "textile-storefront"
	}
	return &tracer{t: otel.Tracer(name), common: slices.Clip(common)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(t.common, attrs...)...),
	)
}
