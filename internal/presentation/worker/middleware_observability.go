package workerpresentation

import (
	"context"
	"sort"

	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext stores an event-scoped logger on ctx for worker handlers.
// It extends the logger already on ctx, or base when there is none, with event_id (generated when attrs has none), trace_id and span_id from
// the span on ctx, and the remaining attrs in key order. Keep attrs low-cardinality.
func WithEventContext(ctx context.Context, base observability.Logger, attrs map[string]string) (context.Context, observability.Logger) {
	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F("event_id", evtID))

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, observability.F(k, attrs[k]))
	}

	return logctx.WithFields(ctx, base, fields...)
}
