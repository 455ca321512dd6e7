package tracing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cafeswipe/server/internal/middleware"
	"github.com/cafeswipe/server/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestEndToEndTracing runs a request through the tracing middleware and
// a handler shaped like the swipe-feed pipeline, then checks that the
// HTTP, service, and DB spans land in one trace.
func TestEndToEndTracing(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ctx, endFeed := tracing.StartSpan(ctx, "feed.swipe")
		tracing.SetAttributes(ctx,
			attribute.String("user.id", "user-1"),
			attribute.Float64("feed.radius_meters", 2000),
		)

		ctx, endQuery := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationQuery)
		endQuery(nil)

		tracing.AddEvent(ctx, "candidates_selected", attribute.Int("count", 12))
		endFeed(nil)

		w.WriteHeader(http.StatusOK)
	})

	traced := middleware.Tracing("cafeswipe-api")(handler)

	req := httptest.NewRequest(http.MethodGet, "/cafes/swipe", nil)
	rr := httptest.NewRecorder()
	traced.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	spans := spanRecorder.Ended()
	if len(spans) != 3 {
		t.Errorf("span count = %d, want 3", len(spans))
		for i, span := range spans {
			t.Logf("  span %d: %s", i, span.Name())
		}
	}

	spanNames := make(map[string]bool)
	for _, span := range spans {
		spanNames[span.Name()] = true
	}
	for _, name := range []string{"GET /cafes/swipe", "feed.swipe", "query cafes"} {
		if !spanNames[name] {
			t.Errorf("missing span %q", name)
		}
	}

	if len(spans) > 0 {
		traceID := spans[0].SpanContext().TraceID()
		for i, span := range spans {
			if span.SpanContext().TraceID() != traceID {
				t.Errorf("span %d trace ID = %s, want %s", i, span.SpanContext().TraceID(), traceID)
			}
		}
	}

	for _, span := range spans {
		if span.Name() != "query cafes" {
			continue
		}
		attrs := make(map[attribute.Key]attribute.Value)
		for _, attr := range span.Attributes() {
			attrs[attr.Key] = attr.Value
		}
		if got := attrs["db.system"].AsString(); got != "postgresql" {
			t.Errorf("db.system = %q", got)
		}
		if got := attrs["db.operation"].AsString(); got != "query" {
			t.Errorf("db.operation = %q", got)
		}
		if got := attrs["db.sql.table"].AsString(); got != "cafes" {
			t.Errorf("db.sql.table = %q", got)
		}
	}
}

// TestTracingDisabled verifies span helpers are safe no-ops when the
// provider is disabled.
func TestTracingDisabled(t *testing.T) {
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName: "cafeswipe-api",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}

	ctx := context.Background()
	ctx, endSpan := tracing.StartSpan(ctx, "feed.swipe")
	tracing.SetAttributes(ctx, attribute.String("key", "value"))
	tracing.AddEvent(ctx, "noop")
	endSpan(nil)
}

// TestTraceContextPropagation verifies the middleware exposes the same
// trace ID the recorded span carries.
func TestTraceContextPropagation(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	var capturedTraceID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = middleware.GetTraceID(r)
		w.WriteHeader(http.StatusOK)
	})

	traced := middleware.Tracing("cafeswipe-api")(handler)
	req := httptest.NewRequest(http.MethodGet, "/cafes/near", nil)
	rr := httptest.NewRecorder()
	traced.ServeHTTP(rr, req)

	if capturedTraceID == "" {
		t.Fatal("expected non-empty trace ID")
	}
	spans := spanRecorder.Ended()
	if len(spans) > 0 {
		spanTraceID := spans[0].SpanContext().TraceID().String()
		if capturedTraceID != spanTraceID {
			t.Errorf("handler trace ID = %s, span trace ID = %s", capturedTraceID, spanTraceID)
		}
	}
}
