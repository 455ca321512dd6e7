// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are recorded under their own path label; everything
// else runs through the {id} collapsing below.
var staticRoutes = map[string]bool{
	"/":                   true,
	"/cafes":              true,
	"/cafes/near":         true,
	"/cafes/swipe":        true,
	"/cafes/liked":        true,
	"/cafes/search":       true,
	"/images/sign-upload": true,
	"/health":             true,
	"/ready":              true,
	"/metrics":            true,
}

// normalizePath collapses dynamic segments so every café ID lands in
// one series: /cafes/123 becomes /cafes/{id}, /cafes/123/preference
// becomes /cafes/{id}/preference. Unknown paths pass through as-is.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/cafes/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "preference" {
			return "/cafes/{id}/preference"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/cafes/{id}"
		}
	}
	return path
}

// metricsResponseWriter captures status code and bytes written. Only
// the first WriteHeader call counts, matching net/http semantics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer for middleware chains.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics records duration, count, and request/response sizes for
// each request. /health and /ready are skipped so probes don't drown
// out real traffic.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			var requestSize int64
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
					requestSize = n
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
