package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func profilingHandler(cfg ProfilingConfig) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("app"))
	})
	return Profiling(cfg)(next)
}

func TestProfiling_Disabled(t *testing.T) {
	handler := profilingHandler(ProfilingConfig{Enabled: false, Environment: "development"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/pprof/", nil))

	if rec.Body.String() != "app" {
		t.Error("disabled profiling intercepted the request")
	}
}

func TestProfiling_EnabledInDevelopment(t *testing.T) {
	handler := profilingHandler(ProfilingConfig{Enabled: true, Environment: "development"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/pprof/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "goroutine") {
		t.Error("pprof index not served")
	}
}

func TestProfiling_RefusedInProduction(t *testing.T) {
	for _, env := range []string{"production", "prod"} {
		t.Run(env, func(t *testing.T) {
			handler := profilingHandler(ProfilingConfig{Enabled: true, Environment: env})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/pprof/", nil))

			if rec.Body.String() != "app" {
				t.Error("profiling active despite production environment")
			}
		})
	}
}

func TestProfiling_HeapProfile(t *testing.T) {
	handler := profilingHandler(ProfilingConfig{Enabled: true, Environment: "development"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/pprof/heap", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("heap profile status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty heap profile")
	}
}

func TestProfiling_OtherRoutesPassThrough(t *testing.T) {
	handler := profilingHandler(ProfilingConfig{Enabled: true, Environment: "development"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/cafes/swipe", nil))

	if rec.Body.String() != "app" {
		t.Error("application route intercepted by profiling middleware")
	}
}

func TestProfilingStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ProfilingStatus(ProfilingConfig{Enabled: true, Environment: "development"})(rec, httptest.NewRequest("GET", "/debug/profiling-status", nil))

	var resp struct {
		ProfilingEnabled bool   `json:"profiling_enabled"`
		Environment      string `json:"environment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.ProfilingEnabled || resp.Environment != "development" {
		t.Errorf("status = %+v", resp)
	}
}
