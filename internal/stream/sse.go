// Package stream serves live ISS visibility for one observer as
// Server-Sent Events on GET /api/v1/stream/iss.
//
// The first message on every connection is metadata:
//
//	data: {"type":"metadata","source":"sgp4","norad_id":25544,"observer":{...},"interval_seconds":10}\n\n
//
// followed by one visibility message per interval:
//
//	data: {"type":"visibility","t":"2026-02-06T04:00:00Z","position":{...},"visibility":{...},"status":"live"}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/httputil"
	"github.com/Blood-Moon-Interactive/StarWX/internal/iss"
	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

const (
	maxIntervalSeconds = 60
	retryAfterSeconds  = 30
)

// Config holds streaming limits and timing.
type Config struct {
	MaxConcurrentPerIP int
	MaxConcurrent      int
	KeepaliveInterval  time.Duration
	// Interval is the default spacing of visibility messages.
	Interval   time.Duration
	TrustProxy bool
}

// LiveSource returns the tracked object's current sample.
type LiveSource interface {
	Live(ctx context.Context) (visibility.TimestampedPosition, error)
}

// Metadata describes the sample source in the first stream message.
type Metadata struct {
	Source        string `json:"source"`
	NORADID       int    `json:"norad_id"`
	DatasetEpoch  string `json:"dataset_epoch,omitempty"`
	TLEAgeSeconds *int   `json:"tle_age_seconds,omitempty"`
}

// Handler manages SSE connections.
type Handler struct {
	source   LiveSource
	metadata func() Metadata
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a streaming handler. metadata is called once per
// connection.
func NewHandler(source LiveSource, metadata func() Metadata, config Config, logger *slog.Logger) *Handler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:   source,
		metadata: metadata,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:   logger.With("component", "stream"),
		now:      time.Now,
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int { return h.limiter.active() }

// HandleISS serves the live visibility stream.
// GET /api/v1/stream/iss?lat=40.7&lon=-74.0&interval=10
func (h *Handler) HandleISS(w http.ResponseWriter, r *http.Request) {
	obs, err := httputil.ObserverFromQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defSeconds := max(int(h.config.Interval/time.Second), 1)
	seconds, err := httputil.IntParam(r, "interval", defSeconds, 1, maxIntervalSeconds)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	interval := time.Duration(seconds) * time.Second

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if refused := h.limiter.acquire(ip); refused != "" {
		metrics.IncStreamErrors(refused)
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"limit", refused,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections()
	metrics.IncStreamsActive()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_seconds", seconds,
	)

	c := &client{ip: ip, logger: h.logger}
	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Lift the server WriteTimeout for this long-lived response; each write
	// sets its own deadline.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c.w, c.flusher, c.rc = w, flusher, rc

	// Spread reconnects over 3-7s after a restart.
	if err := c.sendRetry(jitteredRetry()); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	meta := metadataMessage{
		Type:            "metadata",
		Metadata:        h.metadata(),
		Observer:        obs,
		IntervalSeconds: seconds,
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	if !h.sendVisibility(ctx, c, obs) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !h.sendVisibility(ctx, c, obs) {
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// sendVisibility classifies the live sample and writes it. A source failure
// skips the message; only a write failure ends the stream.
func (h *Handler) sendVisibility(ctx context.Context, c *client, obs visibility.Observer) bool {
	sample, err := h.source.Live(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		metrics.IncStreamErrors("source_error")
		h.logger.Debug("live sample unavailable", "remote_ip", c.ip, "error", err)
		return true
	}
	if err := c.sendJSON(buildVisibilityMessage(obs, sample, h.now())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
		return false
	}
	return true
}

func buildVisibilityMessage(obs visibility.Observer, sample visibility.TimestampedPosition, now time.Time) visibilityMessage {
	return visibilityMessage{
		Type:       "visibility",
		T:          sample.Time.UTC().Format(time.RFC3339),
		Position:   sample,
		Visibility: visibility.Classify(obs, visibility.OrbitingPlatform{Sample: sample}),
		Status:     iss.StatusOf(sample.Time, now),
	}
}

func jitteredRetry() time.Duration {
	return 3*time.Second + time.Duration(rand.IntN(4000))*time.Millisecond
}

type metadataMessage struct {
	Type string `json:"type"`
	Metadata
	Observer        visibility.Observer `json:"observer"`
	IntervalSeconds int                 `json:"interval_seconds"`
}

type visibilityMessage struct {
	Type       string                         `json:"type"`
	T          string                         `json:"t"`
	Position   visibility.TimestampedPosition `json:"position"`
	Visibility visibility.Result              `json:"visibility"`
	Status     iss.Status                     `json:"status"`
}
