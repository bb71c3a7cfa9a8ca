package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/api"
	"github.com/Blood-Moon-Interactive/StarWX/internal/cache"
	"github.com/Blood-Moon-Interactive/StarWX/internal/config"
	"github.com/Blood-Moon-Interactive/StarWX/internal/events"
	"github.com/Blood-Moon-Interactive/StarWX/internal/feedcache"
	"github.com/Blood-Moon-Interactive/StarWX/internal/iss"
	"github.com/Blood-Moon-Interactive/StarWX/internal/jpl"
	"github.com/Blood-Moon-Interactive/StarWX/internal/observability"
	"github.com/Blood-Moon-Interactive/StarWX/internal/passes"
	"github.com/Blood-Moon-Interactive/StarWX/internal/propagation"
	"github.com/Blood-Moon-Interactive/StarWX/internal/stream"
	"github.com/Blood-Moon-Interactive/StarWX/internal/tle"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer observability.Shutdown(context.Background(), shutdownTracing, logger)

	// TLE data backs the sgp4 source and the /api/v1/tle endpoints.
	store := tle.NewStore()
	var fetcher *tle.Fetcher
	if cfg.TLE.EnableFetch {
		fetcher = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	}
	refresher := tle.NewRefresher(fetcher, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), store, cfg.TLE.MaxAge, logger)
	if err := refresher.LoadCached(); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	}
	go refresher.Run(ctx, cfg.TLE.RefreshInterval)

	source, version := sampleSource(cfg, store, logger)
	track := cache.New(cache.Config{
		Step:        cfg.Passes.Step,
		Horizon:     cfg.Passes.Horizon,
		GracePeriod: cfg.Cache.GracePeriod,
		Buffer:      cfg.Cache.Buffer,
		LiveTTL:     cfg.Cache.LiveTTL,
	}, source, version, logger)
	go track.Start(ctx)

	var feeds *feedcache.Cache
	if cfg.Redis.Addr != "" {
		feeds = feedcache.New(ctx, feedcache.Config{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			TTL:            cfg.Redis.TTL,
			DisableOnError: true,
		}, logger)
		defer feeds.Close()
	}
	aggregator := events.NewAggregator(jpl.NewClient(cfg.JPLBaseURL, feeds, logger), logger)

	streamHandler := stream.NewHandler(track, streamMetadata(cfg, store), stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		MaxConcurrent:      cfg.Stream.MaxConcurrent,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		Interval:           cfg.Stream.Interval,
		TrustProxy:         cfg.TrustProxy,
	}, logger)

	srv := api.NewServer(cfg.HTTPAddr, logger, api.Deps{
		Track:      track,
		Events:     aggregator,
		TLE:        store,
		Stream:     streamHandler,
		Ready:      track.Ready,
		SourceName: cfg.Source,
		NORADID:    cfg.NORADID,
		PassStep:   cfg.Passes.Step,
		MaxHours:   cfg.Passes.MaxHours,
	})

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"source", cfg.Source,
			"norad_id", cfg.NORADID,
			"tle_fetch_enabled", cfg.TLE.EnableFetch,
			"feed_cache", feeds.Available(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// sampleSource builds the configured position source and, for sgp4, the
// dataset version the track cache watches for cutovers.
func sampleSource(cfg config.Config, store *tle.Store, logger *slog.Logger) (passes.SampleSource, cache.VersionFunc) {
	if cfg.Source == config.SourceISS {
		return iss.NewClient(cfg.ISSBaseURL, logger), nil
	}
	prop := propagation.NewPropagator(store, propagation.Config{
		Workers: cfg.Workers,
		NORADID: cfg.NORADID,
	}, logger)
	version := func() (time.Time, bool) {
		ds := store.Get()
		if ds == nil {
			return time.Time{}, false
		}
		return ds.FetchedAt, true
	}
	return prop, version
}

func streamMetadata(cfg config.Config, store *tle.Store) func() stream.Metadata {
	return func() stream.Metadata {
		meta := stream.Metadata{Source: cfg.Source, NORADID: cfg.NORADID}
		if cfg.Source != config.SourceSGP4 {
			return meta
		}
		if ds := store.Get(); ds != nil {
			age := int(time.Since(ds.FetchedAt).Seconds())
			meta.DatasetEpoch = ds.FetchedAt.UTC().Format(time.RFC3339)
			meta.TLEAgeSeconds = &age
		}
		return meta
	}
}
