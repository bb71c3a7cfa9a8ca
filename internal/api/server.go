// Package api serves the StarWX HTTP JSON API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Blood-Moon-Interactive/StarWX/internal/cache"
	"github.com/Blood-Moon-Interactive/StarWX/internal/events"
	"github.com/Blood-Moon-Interactive/StarWX/internal/health"
	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/passes"
	"github.com/Blood-Moon-Interactive/StarWX/internal/stream"
	"github.com/Blood-Moon-Interactive/StarWX/internal/tle"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// EventSource produces ranked event cards. *events.Aggregator implements it.
type EventSource interface {
	Events(ctx context.Context, obs visibility.Observer, rng *events.Range) (events.Result, error)
}

// Deps are the collaborators the handlers serve from.
type Deps struct {
	// Track serves both pass prediction and live samples.
	Track  *cache.TrackCache
	Events EventSource
	TLE    *tle.Store
	Stream *stream.Handler

	// Ready reports whether the sample source can serve.
	Ready func() bool

	SourceName string
	NORADID    int
	PassStep   time.Duration
	MaxHours   int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	logger = logger.With("component", "api")
	if deps.MaxHours < 1 {
		deps.MaxHours = 72
	}
	if deps.PassStep <= 0 {
		deps.PassStep = passes.DefaultStep
	}
	if deps.Ready == nil {
		deps.Ready = func() bool { return true }
	}
	h := &handlers{deps: deps, logger: logger, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/iss/now", h.issNow)
	mux.HandleFunc("GET /api/v1/iss/passes", h.issPasses)
	mux.HandleFunc("GET /api/v1/events", h.events)
	mux.HandleFunc("GET /api/v1/tle/metadata", h.tleMetadata)
	mux.HandleFunc("GET /api/v1/tle/{norad_id}", h.tleEntry)
	mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/iss", deps.Stream.HandleISS)
	}

	// Middleware chain: metrics -> tracing -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = otelhttp.NewHandler(handler, "starwx",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}
