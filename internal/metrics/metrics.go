package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwx_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "starwx_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	upstreamFetchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "starwx_upstream_fetch_duration_seconds",
			Help:    "Duration of requests to upstream data feeds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwx_upstream_errors_total",
			Help: "Failed requests to upstream data feeds.",
		},
		[]string{"source"},
	)

	propagationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "starwx_propagation_duration_seconds",
		Help:    "Duration of one SGP4 track propagation batch.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	propagationSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwx_propagation_samples_total",
			Help: "Propagated track samples by outcome.",
		},
		[]string{"result"},
	)

	tleDatasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starwx_tle_dataset_age_seconds",
		Help: "Age of the loaded TLE dataset.",
	})

	tleDatasetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starwx_tle_dataset_satellites",
		Help: "Number of satellites in the loaded TLE dataset.",
	})

	passDetectionSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "starwx_pass_detection_duration_seconds",
		Help:    "Duration of a pass prediction request including track retrieval.",
		Buckets: prometheus.DefBuckets,
	})

	passesDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_passes_detected_total",
		Help: "Visible passes found across all prediction requests.",
	})

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_track_cache_hits_total",
		Help: "Track samples served from the rolling cache.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_track_cache_misses_total",
		Help: "Track samples that had to be fetched from the underlying source.",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_track_cache_evictions_total",
		Help: "Track samples evicted from the rolling cache.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starwx_track_cache_entries",
		Help: "Track samples currently held in the rolling cache.",
	})

	cacheGraceActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starwx_track_cache_grace_active",
		Help: "1 while the cache is rebuilding after a TLE change.",
	})

	cacheRegenerationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_track_cache_regeneration_errors_total",
		Help: "Failed cache warmups, extensions and rebuilds.",
	})

	cacheRegenerationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "starwx_track_cache_regeneration_duration_seconds",
		Help:    "Duration of full cache rebuilds.",
		Buckets: prometheus.DefBuckets,
	})

	feedCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwx_feed_cache_requests_total",
			Help: "Feed response cache lookups by result.",
		},
		[]string{"result"},
	)

	streamConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_stream_connections_total",
		Help: "SSE connections accepted.",
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starwx_streams_active",
		Help: "SSE connections currently open.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_stream_messages_total",
		Help: "SSE messages written.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starwx_stream_bytes_total",
		Help: "SSE payload bytes written.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwx_stream_errors_total",
			Help: "SSE failures and rejections by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		upstreamFetchSeconds,
		upstreamErrorsTotal,
		propagationSeconds,
		propagationSamplesTotal,
		tleDatasetAgeSeconds,
		tleDatasetCount,
		passDetectionSeconds,
		passesDetectedTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheGraceActive,
		cacheRegenerationErrors,
		cacheRegenerationSeconds,
		feedCacheTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the fixed paths served by the API.
var knownRoutes = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/iss/now":      true,
	"/api/v1/iss/passes":   true,
	"/api/v1/events":       true,
	"/api/v1/stream/iss":   true,
	"/api/v1/tle/metadata": true,
	"/api/v1/cache/stats":  true,
}

const tlePrefix = "/api/v1/tle/"

// normalizeRoute maps a request path onto a bounded set of label values.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, tlePrefix); ok && isDigits(id) {
		return tlePrefix + "{norad_id}"
	}
	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// RecordUpstreamFetch records one request to an upstream feed.
func RecordUpstreamFetch(source string, d time.Duration, err error) {
	upstreamFetchSeconds.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(source).Inc()
	}
}

// RecordPropagation records one propagation batch.
func RecordPropagation(d time.Duration, success, failed int) {
	propagationSeconds.Observe(d.Seconds())
	propagationSamplesTotal.WithLabelValues("ok").Add(float64(success))
	propagationSamplesTotal.WithLabelValues("error").Add(float64(failed))
}

func SetTLEDatasetAge(d time.Duration) { tleDatasetAgeSeconds.Set(d.Seconds()) }
func SetTLEDatasetCount(n int)         { tleDatasetCount.Set(float64(n)) }

// RecordPassDetection records one prediction request and the passes it found.
func RecordPassDetection(d time.Duration, passes int) {
	passDetectionSeconds.Observe(d.Seconds())
	passesDetectedTotal.Add(float64(passes))
}

func AddCacheHits(n int)      { cacheHitsTotal.Add(float64(n)) }
func AddCacheMisses(n int)    { cacheMissesTotal.Add(float64(n)) }
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int)   { cacheEntries.Set(float64(n)) }

func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGraceActive.Set(1)
		return
	}
	cacheGraceActive.Set(0)
}

func IncCacheRegenerationErrors() { cacheRegenerationErrors.Inc() }

func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationSeconds.Observe(d.Seconds())
}

// IncFeedCache counts a feed cache lookup; result is "hit", "miss" or "error".
func IncFeedCache(result string) { feedCacheTotal.WithLabelValues(result).Inc() }

func IncStreamConnections()         { streamConnectionsTotal.Inc() }
func IncStreamsActive()             { streamsActive.Inc() }
func DecStreamsActive()             { streamsActive.Dec() }
func IncStreamMessages()            { streamMessagesTotal.Inc() }
func AddStreamBytes(n int)          { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }
