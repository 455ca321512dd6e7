package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesUUID(t *testing.T) {
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cafes/swipe", nil))

	if ctxID == "" {
		t.Fatal("no request ID in context")
	}
	if _, err := uuid.Parse(ctxID); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", ctxID, err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != ctxID {
		t.Errorf("response header = %q, context = %q", got, ctxID)
	}
}

func TestRequestID_KeepsClientID(t *testing.T) {
	const clientID = "retry-7f3a"
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/cafes/swipe", nil)
	req.Header.Set(RequestIDHeader, clientID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ctxID != clientID {
		t.Errorf("context ID = %q, want %q", ctxID, clientID)
	}
	if got := rec.Header().Get(RequestIDHeader); got != clientID {
		t.Errorf("response header = %q, want %q", got, clientID)
	}
}

func TestGetRequestID_MissingReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cafes/swipe", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}
