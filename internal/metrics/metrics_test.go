package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/iss/now", "/api/v1/iss/now"},
		{"/api/v1/iss/passes", "/api/v1/iss/passes"},
		{"/api/v1/events", "/api/v1/events"},
		{"/api/v1/stream/iss", "/api/v1/stream/iss"},
		{"/api/v1/tle/metadata", "/api/v1/tle/metadata"},
		{"/api/v1/cache/stats", "/api/v1/cache/stats"},

		// Parameterized TLE routes collapse to one label.
		{"/api/v1/tle/25544", "/api/v1/tle/{norad_id}"},
		{"/api/v1/tle/1", "/api/v1/tle/{norad_id}"},
		{"/api/v1/tle/abc", "other"},
		{"/api/v1/tle/", "other"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// 100 unique NORAD IDs must produce exactly one path label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute("/api/v1/tle/"+strconv.Itoa(25000+i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "418"))
	if after-before != 1 {
		t.Errorf("request counter delta = %v, want 1", after-before)
	}
}

func TestSetCacheGracePeriodActive(t *testing.T) {
	SetCacheGracePeriodActive(true)
	if got := testutil.ToFloat64(cacheGraceActive); got != 1 {
		t.Errorf("grace gauge = %v, want 1", got)
	}
	SetCacheGracePeriodActive(false)
	if got := testutil.ToFloat64(cacheGraceActive); got != 0 {
		t.Errorf("grace gauge = %v, want 0", got)
	}
}
