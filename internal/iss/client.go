// Package iss is a client for the wheretheiss.at satellite position API.
package iss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

const (
	DefaultBaseURL = "https://api.wheretheiss.at/v1"
	ISSNORADID     = 25544

	// maxTimestamps is the most timestamps the positions endpoint accepts
	// per request.
	maxTimestamps = 10
	maxBodyBytes  = 1 << 20
)

// Position is one report from the API. Distances are kilometres.
type Position struct {
	Name       string  `json:"name"`
	ID         int     `json:"id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	Velocity   float64 `json:"velocity"`
	Visibility string  `json:"visibility"`
	Footprint  float64 `json:"footprint"`
	Timestamp  int64   `json:"timestamp"`
	SolarLat   float64 `json:"solar_lat"`
	SolarLon   float64 `json:"solar_lon"`
	Units      string  `json:"units"`
}

// Time returns the report time.
func (p Position) Time() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}

// Sample converts the report into a track sample.
func (p Position) Sample() visibility.TimestampedPosition {
	return visibility.TimestampedPosition{
		Time:         p.Time(),
		Point:        geo.Point{Latitude: p.Latitude, Longitude: p.Longitude},
		AltitudeKm:   p.Altitude,
		Illumination: visibility.ParseIllumination(p.Visibility),
	}
}

// Client fetches ISS positions.
type Client struct {
	baseURL    string
	noradID    int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for baseURL (DefaultBaseURL if empty).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		noradID: ISSNORADID,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("component", "iss"),
	}
}

// Current returns the latest reported position.
func (c *Client) Current(ctx context.Context) (Position, error) {
	var pos Position
	u := fmt.Sprintf("%s/satellites/%d?units=kilometers", c.baseURL, c.noradID)
	if err := c.getJSON(ctx, u, &pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// Positions returns the reported positions at times, in order. Requests are
// split into batches the API accepts and issued sequentially.
func (c *Client) Positions(ctx context.Context, times []time.Time) ([]Position, error) {
	out := make([]Position, 0, len(times))
	for start := 0; start < len(times); start += maxTimestamps {
		end := min(start+maxTimestamps, len(times))
		chunk := times[start:end]

		stamps := make([]string, len(chunk))
		for i, t := range chunk {
			stamps[i] = strconv.FormatInt(t.Unix(), 10)
		}
		u := fmt.Sprintf("%s/satellites/%d/positions?timestamps=%s&units=kilometers",
			c.baseURL, c.noradID, strings.Join(stamps, ","))

		var batch []Position
		if err := c.getJSON(ctx, u, &batch); err != nil {
			return nil, fmt.Errorf("positions %d-%d of %d: %w", start, end-1, len(times), err)
		}
		if len(batch) != len(chunk) {
			return nil, fmt.Errorf("positions %d-%d: got %d reports for %d timestamps", start, end-1, len(batch), len(chunk))
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Track returns samples at times, in order. Each sample carries the
// requested time rather than the whole-second time echoed by the API.
func (c *Client) Track(ctx context.Context, times []time.Time) ([]visibility.TimestampedPosition, error) {
	positions, err := c.Positions(ctx, times)
	if err != nil {
		return nil, err
	}
	track := make([]visibility.TimestampedPosition, len(positions))
	for i, p := range positions {
		s := p.Sample()
		s.Time = times[i]
		track[i] = s
	}
	return track, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordUpstreamFetch("wheretheiss", time.Since(start), err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching ISS data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("unexpected status code %d from wheretheiss.at", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decoding ISS response: %w", err)
	}
	return nil
}
