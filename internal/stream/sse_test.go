package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
	"github.com/Blood-Moon-Interactive/StarWX/internal/iss"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

type fakeLive struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLive) Live(context.Context) (visibility.TimestampedPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return visibility.TimestampedPosition{}, f.err
	}
	return visibility.TimestampedPosition{
		Time:         time.Now(),
		Point:        geo.Point{Latitude: 41, Longitude: -74},
		AltitudeKm:   420,
		Illumination: visibility.Night,
	}, nil
}

func testMetadata() Metadata {
	age := 1800
	return Metadata{
		Source:        "sgp4",
		NORADID:       25544,
		DatasetEpoch:  "2026-02-06T03:45:00Z",
		TLEAgeSeconds: &age,
	}
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      100,
		KeepaliveInterval:  30 * time.Second,
		Interval:           10 * time.Second,
	}
}

// dataMessages returns the decoded "data:" payloads of an SSE body.
func dataMessages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func runStream(t *testing.T, h *Handler, target string, d time.Duration) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), d)
	defer cancel()
	w := httptest.NewRecorder()
	h.HandleISS(w, req.WithContext(ctx))
	return w
}

// TestSSEMessageFormat verifies headers, message order and the wire format.
func TestSSEMessageFormat(t *testing.T) {
	h := NewHandler(&fakeLive{}, testMetadata, testConfig(), testLogger())
	w := runStream(t, h, "/api/v1/stream/iss?lat=40.7&lon=-74.0&interval=1", 1500*time.Millisecond)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: ") {
		t.Errorf("stream should open with a retry hint, got %q", body[:min(len(body), 20)])
	}

	msgs := dataMessages(t, body)
	if len(msgs) < 3 {
		t.Fatalf("got %d messages, want metadata plus at least 2 visibility messages", len(msgs))
	}
	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Fatalf("first message type = %v, want metadata", meta["type"])
	}
	if meta["source"] != "sgp4" || meta["norad_id"].(float64) != 25544 {
		t.Errorf("metadata = %v", meta)
	}
	if meta["tle_age_seconds"].(float64) != 1800 || meta["interval_seconds"].(float64) != 1 {
		t.Errorf("metadata = %v", meta)
	}

	for _, msg := range msgs[1:] {
		if msg["type"] != "visibility" {
			t.Errorf("type = %v, want visibility", msg["type"])
			continue
		}
		vis := msg["visibility"].(map[string]any)
		if vis["is_visible"] != true {
			t.Errorf("ISS at night 40 km away should be visible: %v", vis)
		}
		if msg["status"] != string(iss.StatusLive) {
			t.Errorf("status = %v", msg["status"])
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if line == "" || line == ":" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestSourceErrorKeepsStreamOpen(t *testing.T) {
	src := &fakeLive{err: errors.New("upstream down")}
	cfg := testConfig()
	cfg.KeepaliveInterval = 200 * time.Millisecond
	h := NewHandler(src, testMetadata, cfg, testLogger())
	w := runStream(t, h, "/api/v1/stream/iss?lat=0&lon=0&interval=60", 700*time.Millisecond)

	msgs := dataMessages(t, w.Body.String())
	if len(msgs) != 1 || msgs[0]["type"] != "metadata" {
		t.Errorf("messages = %v, want metadata only", msgs)
	}
	if !strings.Contains(w.Body.String(), "\n:\n") {
		t.Error("expected keep-alive comments while the source fails")
	}
	if h.Active() != 0 {
		t.Errorf("Active = %d after disconnect", h.Active())
	}
}

func TestBuildVisibilityMessage(t *testing.T) {
	now := time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)
	sample := visibility.TimestampedPosition{
		Time:         now.Add(-2 * time.Minute),
		Point:        geo.Point{Latitude: 10, Longitude: 10},
		Illumination: visibility.Daylight,
	}
	msg := buildVisibilityMessage(visibility.NewObserver(10, 10), sample, now)

	if msg.Type != "visibility" || msg.T != "2026-02-06T03:58:00Z" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Visibility.IsVisible {
		t.Error("daylight sample should not be visible")
	}
	if msg.Status != iss.StatusRecent {
		t.Errorf("status = %q, want recent", msg.Status)
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 100)

	for i := range 3 {
		if r := limiter.acquire("10.0.0.1"); r != "" {
			t.Fatalf("acquire %d refused: %s", i+1, r)
		}
	}
	if r := limiter.acquire("10.0.0.1"); r != "ip_limit" {
		t.Errorf("acquire beyond limit = %q, want ip_limit", r)
	}
	if r := limiter.acquire("10.0.0.2"); r != "" {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if r := limiter.acquire("10.0.0.1"); r != "" {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
	if a := limiter.active(); a != 4 {
		t.Errorf("active = %d, want 4", a)
	}
}

func TestGlobalLimit(t *testing.T) {
	limiter := newStreamLimiter(10, 2)
	limiter.acquire("10.0.0.1")
	limiter.acquire("10.0.0.2")
	if r := limiter.acquire("10.0.0.3"); r != "global_limit" {
		t.Errorf("acquire = %q, want global_limit", r)
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 1000)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") == "" {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	handler := NewHandler(&fakeLive{}, testMetadata, cfg, testLogger())

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/iss?lat=1&lon=1", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandleISS(w, req)
	}()

	<-ready

	req := httptest.NewRequest("GET", "/api/v1/stream/iss?lat=1&lon=1", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.HandleISS(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want 30", w.Header().Get("Retry-After"))
	}

	<-done
}

// TestInvalidQueryParams verifies error responses for bad parameters.
func TestInvalidQueryParams(t *testing.T) {
	src := &fakeLive{}
	handler := NewHandler(src, testMetadata, testConfig(), testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"missing location", ""},
		{"missing lon", "?lat=10"},
		{"lat out of range", "?lat=95&lon=0"},
		{"interval zero", "?lat=0&lon=0&interval=0"},
		{"interval too large", "?lat=0&lon=0&interval=61"},
		{"interval non-numeric", "?lat=0&lon=0&interval=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/iss"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			handler.HandleISS(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			var body map[string]string
			json.NewDecoder(w.Body).Decode(&body)
			if body["error"] == "" {
				t.Error("expected error field in response")
			}
		})
	}
	if src.calls != 0 {
		t.Errorf("source called %d times for rejected requests", src.calls)
	}
}

func TestJitteredRetry(t *testing.T) {
	for range 100 {
		d := jitteredRetry()
		if d < 3*time.Second || d >= 7*time.Second {
			t.Fatalf("retry %v outside [3s, 7s)", d)
		}
	}
}
