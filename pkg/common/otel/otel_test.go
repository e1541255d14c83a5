package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/taskpulse/pkg/common/logger"
)

func TestGetTraceIDWithoutSpan(t *testing.T) {
	assert.Equal(t, emptyTraceID, GetTraceID(context.Background()))
}

func TestGetTraceIDWithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
}

func TestInitTelemetryDisabledReturnsNoop(t *testing.T) {
	tp, teardown, err := InitTelemetry(logger.Noop(), Config{ServiceName: "taskpulse"})
	require.NoError(t, err)
	require.NotNil(t, tp)
	teardown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
}

func TestMiddlewareExcludesRoutes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newEndpointExcluder(map[string]struct{}{"/v1/health": {}}, 1)),
		sdktrace.WithSpanProcessor(recorder),
	)

	h := Middleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/v1/health", "/v1/tasks"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/tasks", spans[0].Name())
}
