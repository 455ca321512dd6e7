package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordedSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return recorder
}

func TestTracing_SpanPerRequest(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		wantName string
	}{
		{http.MethodGet, "/cafes/swipe", "GET /cafes/swipe"},
		{http.MethodPost, "/cafes", "POST /cafes"},
		{http.MethodPatch, "/cafes/123", "PATCH /cafes/123"},
		{http.MethodDelete, "/cafes/123", "DELETE /cafes/123"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			recorder := recordedSpans(t)
			handler := Tracing("cafeswipe-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("span count = %d, want 1", len(spans))
			}
			if spans[0].Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", spans[0].Name(), tt.wantName)
			}
		})
	}
}

func TestTracing_IDsVisibleToHandler(t *testing.T) {
	recorder := recordedSpans(t)

	var traceID, spanID string
	handler := Tracing("cafeswipe-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cafes/near", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("span count = %d, want 1", len(spans))
	}
	sc := spans[0].SpanContext()
	if traceID != sc.TraceID().String() {
		t.Errorf("handler trace ID = %q, span = %q", traceID, sc.TraceID())
	}
	if spanID != sc.SpanID().String() {
		t.Errorf("handler span ID = %q, span = %q", spanID, sc.SpanID())
	}
}

func TestTracing_NoActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cafes", nil)
	if got := GetTraceID(req); got != "" {
		t.Errorf("GetTraceID() = %q, want empty without a span", got)
	}
	if got := GetSpanID(req); got != "" {
		t.Errorf("GetSpanID() = %q, want empty without a span", got)
	}
}
