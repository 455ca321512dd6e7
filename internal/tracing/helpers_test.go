package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return recorder
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query", "cafes", DBOperationQuery, "query cafes"},
		{"insert", "cafe_images", DBOperationInsert, "insert cafe_images"},
		{"update", "cafe_preferences", DBOperationUpdate, "update cafe_preferences"},
		{"delete", "cafe_open_hours", DBOperationDelete, "delete cafe_open_hours"},
		{"exec without table", "", DBOperationExec, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := spanRecorder(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("span count = %d, want 1", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}

			attrs := spanAttrs(span)
			if got := attrs["db.system"].AsString(); got != "postgresql" {
				t.Errorf("db.system = %q", got)
			}
			if got := attrs["db.operation"].AsString(); got != string(tt.operation) {
				t.Errorf("db.operation = %q", got)
			}
			table, hasTable := attrs["db.sql.table"]
			if tt.table == "" && hasTable {
				t.Error("unexpected db.sql.table attribute")
			}
			if tt.table != "" && table.AsString() != tt.table {
				t.Errorf("db.sql.table = %q, want %q", table.AsString(), tt.table)
			}
		})
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	recorder := spanRecorder(t)
	queryErr := errors.New("connection reset")

	_, endSpan := StartDBSpan(context.Background(), "cafes", DBOperationQuery)
	endSpan(queryErr)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("span count = %d, want 1", len(spans))
	}
	status := spans[0].Status()
	if status.Code.String() != "Error" {
		t.Errorf("status = %s, want Error", status.Code)
	}
	if status.Description != queryErr.Error() {
		t.Errorf("description = %q, want %q", status.Description, queryErr.Error())
	}
}

func TestStartSpan(t *testing.T) {
	recorder := spanRecorder(t)

	_, endSpan := StartSpan(context.Background(), "feed.swipe")
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("span count = %d, want 1", len(spans))
	}
	if spans[0].Name() != "feed.swipe" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if code := spans[0].Status().Code.String(); code == "Error" {
		t.Errorf("status = %s for successful span", code)
	}
}

func TestAddEventAndSetAttributes(t *testing.T) {
	recorder := spanRecorder(t)

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "feed.swipe")

	SetAttributes(ctx,
		attribute.String("user_id", "4be0643f-user"),
		attribute.Int("feed.page", 2),
	)
	AddEvent(ctx, "candidates_selected", attribute.Int("count", 12))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("span count = %d, want 1", len(spans))
	}

	attrs := spanAttrs(spans[0])
	if got := attrs["user_id"].AsString(); got != "4be0643f-user" {
		t.Errorf("user_id = %q", got)
	}
	if got := attrs["feed.page"].AsInt64(); got != 2 {
		t.Errorf("feed.page = %d", got)
	}

	events := spans[0].Events()
	if len(events) != 1 {
		t.Fatalf("event count = %d, want 1", len(events))
	}
	if events[0].Name != "candidates_selected" {
		t.Errorf("event name = %q", events[0].Name)
	}
}
