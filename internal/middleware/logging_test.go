package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

// loggedRequest runs a request through the Logging middleware and
// returns the parsed JSON log entry.
func loggedRequest(t *testing.T, handler http.HandlerFunc, req *http.Request) (logEntry, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := httptest.NewRecorder()
	Logging(logger)(handler).ServeHTTP(rec, req)

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	return entry, rec
}

func TestLogging_SuccessFields(t *testing.T) {
	entry, _ := loggedRequest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}, httptest.NewRequest(http.MethodGet, "/cafes/swipe", nil))

	if entry.Msg != "request completed" {
		t.Errorf("msg = %q", entry.Msg)
	}
	if entry.Method != "GET" || entry.Path != "/cafes/swipe" {
		t.Errorf("method/path = %s %s", entry.Method, entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("status = %d, want 200", entry.Status)
	}
	if entry.Size != len(`{"data":[]}`) {
		t.Errorf("size = %d, want %d", entry.Size, len(`{"data":[]}`))
	}
	if entry.LatencyMS < 0 {
		t.Errorf("latency_ms = %d", entry.LatencyMS)
	}
	if entry.Level != "INFO" {
		t.Errorf("level = %s, want INFO", entry.Level)
	}
}

func TestLogging_LevelsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		wantLevel string
	}{
		{"client error logs warn", http.StatusBadRequest, "validation_error", "WARN"},
		{"auth failure logs warn", http.StatusUnauthorized, "missing_token", "WARN"},
		{"server error logs error", http.StatusInternalServerError, "internal_error", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, _ := loggedRequest(t, func(w http.ResponseWriter, r *http.Request) {
				// Handlers set the code on the context before writing
				// the status, the way WriteError does.
				UpdateResponseContext(w, SetErrorCode(r.Context(), tt.errorCode))
				w.WriteHeader(tt.status)
			}, httptest.NewRequest(http.MethodPost, "/cafes", nil))

			if entry.Status != tt.status {
				t.Errorf("status = %d, want %d", entry.Status, tt.status)
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entry.Level, tt.wantLevel)
			}
			if entry.ErrorCode != tt.errorCode {
				t.Errorf("error_code = %q, want %q", entry.ErrorCode, tt.errorCode)
			}
		})
	}
}

func TestLogging_RequestAndUserIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetUserID(r.Context(), "3f1c5f2e-9b1a-4c1d-8b4f-2a6d9e8c7b01"))
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/cafes/liked", nil)
	req.Header.Set(RequestIDHeader, "swipe-req-456")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry.RequestID != "swipe-req-456" {
		t.Errorf("request_id = %q", entry.RequestID)
	}
	if entry.UserID != "3f1c5f2e-9b1a-4c1d-8b4f-2a6d9e8c7b01" {
		t.Errorf("user_id = %q", entry.UserID)
	}
}

func TestLogging_ImplicitStatusIs200(t *testing.T) {
	entry, _ := loggedRequest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}, httptest.NewRequest(http.MethodGet, "/health", nil))

	if entry.Status != 200 {
		t.Errorf("status = %d, want 200 when WriteHeader is not called", entry.Status)
	}
}

func TestLogging_NoErrorCodeOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetErrorCode(r.Context(), "leftover_code"))
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cafes", nil))

	if strings.Contains(buf.String(), "error_code") {
		t.Errorf("error_code logged for a 2xx response:\n%s", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		if NewLogger(env) == nil {
			t.Errorf("NewLogger(%q) = nil", env)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID on empty context = %q", got)
	}
	if got := GetErrorCode(ctx); got != "" {
		t.Errorf("GetErrorCode on empty context = %q", got)
	}

	ctx = SetUserID(ctx, "4be0643f-user")
	ctx = SetErrorCode(ctx, "not_found")
	if got := GetUserID(ctx); got != "4be0643f-user" {
		t.Errorf("GetUserID = %q", got)
	}
	if got := GetErrorCode(ctx); got != "not_found" {
		t.Errorf("GetErrorCode = %q", got)
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusCreated)
	n, err := rw.Write([]byte("created body"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 12 || rw.size != 12 {
		t.Errorf("written = %d, tracked size = %d, want 12", n, rw.size)
	}
	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want 201", rw.statusCode)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("underlying status = %d, want 201", rec.Code)
	}
}
