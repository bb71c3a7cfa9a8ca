// Package jpl reads the JPL Solar System Dynamics small-body feeds.
package jpl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Blood-Moon-Interactive/StarWX/internal/feedcache"
	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
)

const (
	DefaultBaseURL = "https://ssd-api.jpl.nasa.gov"

	maxBodyBytes = 10 << 20
)

// Summary is the display form shared by every feed record.
type Summary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description"`
	Label       string     `json:"label"`
}

// Client queries ssd-api.jpl.nasa.gov.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *feedcache.Cache
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client for baseURL (DefaultBaseURL if empty). cache may
// be nil.
func NewClient(baseURL string, cache *feedcache.Cache, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:  cache,
		logger: logger.With("component", "jpl"),
		now:    time.Now,
	}
}

// fetch GETs endpoint with query through the feed cache and decodes into T.
func fetch[T any](ctx context.Context, c *Client, endpoint string, query url.Values) (T, error) {
	u := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return feedcache.Fetch(ctx, c.cache, endpoint+"?"+query.Encode(), func(ctx context.Context) (T, error) {
		var v T
		err := c.getJSON(ctx, endpoint, u, &v)
		return v, err
	})
}

func (c *Client) getJSON(ctx context.Context, endpoint, url string, v any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamFetch("jpl_"+strings.TrimSuffix(endpoint, ".api"), time.Since(start), err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	c.logger.Debug("fetched feed", "endpoint", endpoint, "duration", time.Since(start))
	return nil
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// slug keeps only ASCII letters and digits.
func slug(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
