package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/events"
	"github.com/Blood-Moon-Interactive/StarWX/internal/httputil"
	"github.com/Blood-Moon-Interactive/StarWX/internal/iss"
	"github.com/Blood-Moon-Interactive/StarWX/internal/passes"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

const defaultPassHours = 24

type handlers struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service":  "starwx",
		"source":   h.deps.SourceName,
		"norad_id": h.deps.NORADID,
		"routes": []string{
			"/api/v1/iss/now",
			"/api/v1/iss/passes",
			"/api/v1/events",
			"/api/v1/stream/iss",
			"/api/v1/tle/metadata",
			"/api/v1/tle/{norad_id}",
			"/api/v1/cache/stats",
		},
	})
}

type issNowResponse struct {
	Source     string                         `json:"source"`
	NORADID    int                            `json:"norad_id"`
	Position   visibility.TimestampedPosition `json:"position"`
	Visibility visibility.Result              `json:"visibility"`
	Status     iss.Status                     `json:"status"`
}

// GET /api/v1/iss/now?lat=&lon=
func (h *handlers) issNow(w http.ResponseWriter, r *http.Request) {
	obs, err := httputil.ObserverFromQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sample, err := h.deps.Track.Live(r.Context())
	if err != nil {
		h.logger.Warn("live sample failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "position source unavailable")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, issNowResponse{
		Source:     h.deps.SourceName,
		NORADID:    h.deps.NORADID,
		Position:   sample,
		Visibility: visibility.Classify(obs, visibility.OrbitingPlatform{Sample: sample}),
		Status:     iss.StatusOf(sample.Time, h.now()),
	})
}

type passJSON struct {
	passes.Pass
	DurationMinutes int `json:"duration_minutes"`
}

type passesResponse struct {
	Observer    visibility.Observer `json:"observer"`
	Start       time.Time           `json:"start"`
	Hours       int                 `json:"hours"`
	StepSeconds int                 `json:"step_seconds"`
	Passes      []passJSON          `json:"passes"`
}

// GET /api/v1/iss/passes?lat=&lon=&hours=
func (h *handlers) issPasses(w http.ResponseWriter, r *http.Request) {
	obs, err := httputil.ObserverFromQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := httputil.IntParam(r, "hours", min(defaultPassHours, h.deps.MaxHours), 1, h.deps.MaxHours)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Step-aligned start so the request hits the rolling cache.
	start := h.deps.Track.RoundToStep(h.now())
	results, err := passes.Predict(r.Context(), passes.Request{
		Observers: []visibility.Observer{obs},
		Source:    h.deps.Track,
		Start:     start,
		Step:      h.deps.PassStep,
		Horizon:   time.Duration(hours) * time.Hour,
	})
	if err == nil && results[0].Error != "" {
		err = errors.New(results[0].Error)
	}
	if err != nil {
		h.logger.Warn("pass prediction failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "position source unavailable")
		return
	}

	out := make([]passJSON, len(results[0].Passes))
	for i, p := range results[0].Passes {
		out[i] = passJSON{Pass: p, DurationMinutes: p.DurationMinutes()}
	}
	httputil.WriteJSON(w, http.StatusOK, passesResponse{
		Observer:    obs,
		Start:       start,
		Hours:       hours,
		StepSeconds: int(h.deps.PassStep / time.Second),
		Passes:      out,
	})
}

// GET /api/v1/events?lat=&lon=&start=&end=
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	obs, err := httputil.ObserverFromQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rng, err := events.ParseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.deps.Events.Events(r.Context(), obs, rng)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, events.ErrAllFeedsFailed) {
			status = http.StatusBadGateway
		}
		h.logger.Warn("event aggregation failed", "error", err)
		httputil.WriteError(w, status, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// GET /api/v1/tle/metadata
func (h *handlers) tleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.deps.TLE.Metadata()
	if !ok {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meta)
}

// GET /api/v1/tle/{norad_id}
func (h *handlers) tleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "norad_id must be a positive integer")
		return
	}
	if h.deps.TLE.Get() == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
		return
	}
	entry, ok := h.deps.TLE.Lookup(id)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "satellite not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// GET /api/v1/cache/stats
func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.Track.Stats())
}
