package iss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func fakePosition(ts int64) Position {
	vis := "daylight"
	if ts%2 == 0 {
		vis = "eclipsed"
	}
	return Position{
		Name:       "iss",
		ID:         25544,
		Latitude:   float64(ts%90) - 45,
		Longitude:  float64(ts%360) - 180,
		Altitude:   420,
		Velocity:   27600,
		Visibility: vis,
		Timestamp:  ts,
		Units:      "kilometers",
	}
}

// fakeAPI serves /satellites/25544 and /satellites/25544/positions and
// records the timestamp batches it received.
type fakeAPI struct {
	mu      sync.Mutex
	batches [][]int64
	status  int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch r.URL.Path {
	case "/satellites/25544":
		json.NewEncoder(w).Encode(fakePosition(1_700_000_000))
	case "/satellites/25544/positions":
		var (
			batch []int64
			out   []Position
		)
		for _, s := range strings.Split(r.URL.Query().Get("timestamps"), ",") {
			ts, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "bad timestamp", http.StatusBadRequest)
				return
			}
			batch = append(batch, ts)
			out = append(out, fakePosition(ts))
		}
		if len(batch) > maxTimestamps {
			http.Error(w, "too many timestamps", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.batches = append(f.batches, batch)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(out)
	default:
		http.NotFound(w, r)
	}
}

func TestCurrent(t *testing.T) {
	server := httptest.NewServer(&fakeAPI{})
	defer server.Close()

	pos, err := NewClient(server.URL, testLogger).Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if pos.ID != 25544 || pos.Timestamp != 1_700_000_000 {
		t.Errorf("unexpected position %+v", pos)
	}
	s := pos.Sample()
	if s.Illumination != visibility.Night {
		t.Errorf("eclipsed should map to night, got %q", s.Illumination)
	}
	if !s.Time.Equal(time.Unix(1_700_000_000, 0)) {
		t.Errorf("Time = %v", s.Time)
	}
}

func TestTrackChunksInOrder(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	start := time.Unix(1_700_000_000, 0).UTC()
	times := make([]time.Time, 25)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * 600 * time.Second)
	}

	track, err := NewClient(server.URL, testLogger).Track(context.Background(), times)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if len(track) != len(times) {
		t.Fatalf("got %d samples, want %d", len(track), len(times))
	}
	for i, s := range track {
		if !s.Time.Equal(times[i]) {
			t.Errorf("sample %d time = %v, want %v", i, s.Time, times[i])
		}
		want := fakePosition(times[i].Unix())
		if s.Point.Latitude != want.Latitude || s.Point.Longitude != want.Longitude {
			t.Errorf("sample %d point = %+v, want %v,%v", i, s.Point, want.Latitude, want.Longitude)
		}
	}

	sizes := make([]int, len(api.batches))
	for i, b := range api.batches {
		sizes[i] = len(b)
	}
	if fmt.Sprint(sizes) != "[10 10 5]" {
		t.Errorf("batch sizes = %v, want [10 10 5]", sizes)
	}
}

func TestTrackEmpty(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	track, err := NewClient(server.URL, testLogger).Track(context.Background(), nil)
	if err != nil || len(track) != 0 {
		t.Fatalf("Track(nil) = %v, %v", track, err)
	}
	if len(api.batches) != 0 {
		t.Error("no request expected for an empty track")
	}
}

func TestUpstreamError(t *testing.T) {
	server := httptest.NewServer(&fakeAPI{status: http.StatusTooManyRequests})
	defer server.Close()

	c := NewClient(server.URL, testLogger)
	if _, err := c.Current(context.Background()); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("Current err = %v, want status 429", err)
	}
	if _, err := c.Track(context.Background(), []time.Time{time.Now()}); err == nil {
		t.Error("Track should fail on upstream error")
	}
}

func TestShortBatchIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Position{fakePosition(1)})
	}))
	defer server.Close()

	times := []time.Time{time.Unix(1, 0), time.Unix(2, 0)}
	if _, err := NewClient(server.URL, testLogger).Track(context.Background(), times); err == nil {
		t.Fatal("expected error when the API returns fewer reports than requested")
	}
}

func TestStatusOf(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		age  time.Duration
		want Status
	}{
		{0, StatusLive},
		{59 * time.Second, StatusLive},
		{60 * time.Second, StatusRecent},
		{299 * time.Second, StatusRecent},
		{300 * time.Second, StatusStale},
		{time.Hour, StatusStale},
	}
	for _, tt := range tests {
		if got := StatusOf(now.Add(-tt.age), now); got != tt.want {
			t.Errorf("StatusOf(age %v) = %q, want %q", tt.age, got, tt.want)
		}
	}
	if got := StatusOf(time.Time{}, now); got != StatusUnknown {
		t.Errorf("zero time = %q, want unknown", got)
	}
}
