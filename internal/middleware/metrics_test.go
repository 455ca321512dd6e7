package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_Register(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Double registration must fail rather than silently duplicate.
	if err := metrics.Register(reg); err == nil {
		t.Error("second Register() succeeded, want AlreadyRegisteredError")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.IncRateLimitRequests("/cafes/swipe", "user")
	metrics.IncRateLimitRequests("/cafes/swipe", "user")
	metrics.IncRateLimitRequests("/cafes/near", "ip")
	metrics.IncRateLimitBlocked("/cafes/swipe", "user")
	metrics.IncRateLimitRedisErrors()

	if got := counterValue(t, metrics.rateLimitRequests, prometheus.Labels{
		"endpoint": "/cafes/swipe", "key_type": "user",
	}); got != 2 {
		t.Errorf("rate_limit_requests_total{swipe,user} = %v, want 2", got)
	}
	if got := counterValue(t, metrics.rateLimitRequests, prometheus.Labels{
		"endpoint": "/cafes/near", "key_type": "ip",
	}); got != 1 {
		t.Errorf("rate_limit_requests_total{near,ip} = %v, want 1", got)
	}
	if got := counterValue(t, metrics.rateLimitBlocked, prometheus.Labels{
		"endpoint": "/cafes/swipe", "key_type": "user",
	}); got != 1 {
		t.Errorf("rate_limit_blocked_total = %v, want 1", got)
	}
}

func TestMetrics_Collectors(t *testing.T) {
	metrics := NewMetrics()
	collectors := metrics.Collectors()
	if len(collectors) != 7 {
		t.Errorf("Collectors() returned %d collectors, want 7", len(collectors))
	}
	for i, c := range collectors {
		if c == nil {
			t.Errorf("collector %d is nil", i)
		}
	}
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveHTTPRequest("GET", "/cafes/swipe", "200", 0.05, 0, 4096)
	metrics.ObserveHTTPRequest("GET", "/cafes/swipe", "200", 0.10, 0, 2048)

	if got := counterValue(t, metrics.httpRequestsTotal, prometheus.Labels{
		"method": "GET", "path": "/cafes/swipe", "status": "200",
	}); got != 2 {
		t.Errorf("http_requests_total = %v, want 2", got)
	}
}
