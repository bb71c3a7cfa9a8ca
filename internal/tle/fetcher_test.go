package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	cssName  = "CSS (TIANHE)"
	cssLine1 = "1 48274U 21035A   24100.51234567  .00022000  00000-0  25000-3 0  9993"
	cssLine2 = "2 48274  41.4700 200.1234 0006000 300.0000  60.0000 15.61000000    04"
)

func tleText(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// celestrak serves gp.php responses keyed by the GROUP or CATNR query.
func celestrak(t *testing.T, byQuery map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/NORAD/elements/gp.php" || r.URL.Query().Get("FORMAT") != "tle" {
			http.NotFound(w, r)
			return
		}
		key := "GROUP=" + r.URL.Query().Get("GROUP")
		if r.URL.Query().Has("CATNR") {
			key = "CATNR=" + r.URL.Query().Get("CATNR")
		}
		body, ok := byQuery[key]
		if !ok {
			http.Error(w, "No GP data found", http.StatusNotFound)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func gpURL(srv *httptest.Server, query string) string {
	return srv.URL + "/NORAD/elements/gp.php?" + query + "&FORMAT=tle"
}

func TestFetchStationsGroupCarriesISS(t *testing.T) {
	srv, _ := celestrak(t, map[string]string{
		"GROUP=stations": tleText(issName, issLine1, issLine2, cssName, cssLine1, cssLine2),
	})

	f := NewFetcher(gpURL(srv, "GROUP=stations"), testLogger)
	data, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	entries, err := Parse(strings.NewReader(string(data)), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ds := NewDataset(f.SourceURL(), testNow(), entries)
	iss, ok := ds.Lookup(25544)
	if !ok {
		t.Fatal("ISS (25544) missing from stations group")
	}
	if iss.Name != issName || iss.Line2 != issLine2 {
		t.Errorf("ISS entry = %+v", iss)
	}
	if _, ok := ds.Lookup(48274); !ok {
		t.Error("CSS (48274) missing from stations group")
	}
}

func TestFetchAppendsCatalogQuery(t *testing.T) {
	// The group payload lacks a trailing newline; the CATNR payload must
	// still start on its own line.
	srv, _ := celestrak(t, map[string]string{
		"GROUP=stations": strings.Join([]string{cssName, cssLine1, cssLine2}, "\n"),
		"CATNR=25544":    tleText(issName, issLine1, issLine2),
	})

	f := NewFetcher(gpURL(srv, "GROUP=stations"), testLogger, gpURL(srv, "CATNR=25544"))
	data, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(data), cssLine2+"\n"+issName+"\n") {
		t.Errorf("payloads not joined on a line boundary:\n%s", data)
	}

	entries, err := Parse(strings.NewReader(string(data)), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 || entries[0].NORADID != 48274 || entries[1].NORADID != 25544 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestFetchSkipsOversizedExtra(t *testing.T) {
	srv, _ := celestrak(t, map[string]string{
		"GROUP=stations": tleText(issName, issLine1, issLine2),
		"GROUP=active":   strings.Repeat(tleText(cssName, cssLine1, cssLine2), 20),
	})

	f := NewFetcher(gpURL(srv, "GROUP=stations"), testLogger, gpURL(srv, "GROUP=active"))
	f.maxBytes = 1024

	if _, err := f.get(context.Background(), gpURL(srv, "GROUP=active")); err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("oversized extra: err = %v, want byte limit error", err)
	}

	data, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch should survive an oversized extra source: %v", err)
	}
	if string(data) != tleText(issName, issLine1, issLine2) {
		t.Errorf("data = %q, want the stations payload only", data)
	}
}

func TestFetchOversizedPrimary(t *testing.T) {
	srv, _ := celestrak(t, map[string]string{
		"GROUP=active": strings.Repeat(tleText(issName, issLine1, issLine2), 20),
	})

	f := NewFetcher(gpURL(srv, "GROUP=active"), testLogger)
	f.maxBytes = 1024
	if _, err := f.Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("err = %v, want byte limit error", err)
	}
}

func TestFetchPrimaryFailureSkipsExtras(t *testing.T) {
	srv, hits := celestrak(t, map[string]string{
		"CATNR=25544": tleText(issName, issLine1, issLine2),
	})

	f := NewFetcher(gpURL(srv, "GROUP=stations"), testLogger, gpURL(srv, "CATNR=25544"))
	_, err := f.Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404 error", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream requests = %d, want 1 (extras not tried)", n)
	}
}
