package otel

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

const emptyTraceID = "00000000000000000000000000000000"

// GetTraceID returns the trace id of the span carried by ctx, or an all-zero
// id when there is no valid span. Used as the logger's trace id function.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return emptyTraceID
	}
	return sc.TraceID().String()
}
