// Package config loads service configuration from an optional YAML file and
// STARWX_* environment variables. Environment values win over the file;
// invalid environment values are logged and ignored.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sample sources.
const (
	SourceISS  = "iss"
	SourceSGP4 = "sgp4"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr   string `yaml:"http_addr"`
	LogLevel   string `yaml:"log_level"`
	TrustProxy bool   `yaml:"trust_proxy"`

	// Source selects where ISS samples come from: the wheretheiss.at API or
	// local SGP4 propagation of CelesTrak TLEs.
	Source  string `yaml:"source"`
	NORADID int    `yaml:"norad_id"`
	Workers int    `yaml:"workers"`

	ISSBaseURL string `yaml:"iss_base_url"`
	JPLBaseURL string `yaml:"jpl_base_url"`

	TLE     TLE     `yaml:"tle"`
	Passes  Passes  `yaml:"passes"`
	Cache   Cache   `yaml:"cache"`
	Stream  Stream  `yaml:"stream"`
	Redis   Redis   `yaml:"redis"`
	Tracing Tracing `yaml:"tracing"`
}

type TLE struct {
	EnableFetch     bool          `yaml:"enable_fetch"`
	SourceURL       string        `yaml:"source_url"`
	ExtraURLs       []string      `yaml:"extra_urls"`
	CacheDir        string        `yaml:"cache_dir"`
	MaxFiles        int           `yaml:"max_files"`
	MaxAge          time.Duration `yaml:"max_age"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type Passes struct {
	Step    time.Duration `yaml:"step"`
	Horizon time.Duration `yaml:"horizon"`
	// MaxHours bounds the hours query parameter.
	MaxHours int `yaml:"max_hours"`
}

type Cache struct {
	GracePeriod time.Duration `yaml:"grace_period"`
	Buffer      time.Duration `yaml:"buffer"`
	LiveTTL     time.Duration `yaml:"live_ttl"`
}

type Stream struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	MaxConcurrent      int           `yaml:"max_concurrent"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
	Interval           time.Duration `yaml:"interval"`
}

// Redis configures the optional feed cache. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:   ":8080",
		LogLevel:   "info",
		Source:     SourceSGP4,
		NORADID:    25544,
		Workers:    runtime.NumCPU(),
		ISSBaseURL: "https://api.wheretheiss.at/v1",
		JPLBaseURL: "https://ssd-api.jpl.nasa.gov",
		TLE: TLE{
			EnableFetch: true,
			SourceURL:   "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle",
			ExtraURLs: []string{
				"https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle",
			},
			CacheDir:        "/tmp/starwx/tle",
			MaxFiles:        5,
			MaxAge:          24 * time.Hour,
			RefreshInterval: time.Hour,
		},
		Passes: Passes{
			Step:     600 * time.Second,
			Horizon:  24 * time.Hour,
			MaxHours: 72,
		},
		Cache: Cache{
			GracePeriod: 30 * time.Second,
			Buffer:      10 * time.Minute,
			LiveTTL:     5 * time.Second,
		},
		Stream: Stream{
			MaxConcurrentPerIP: 10,
			MaxConcurrent:      1000,
			KeepaliveInterval:  30 * time.Second,
			Interval:           10 * time.Second,
		},
		Redis: Redis{
			TTL: 10 * time.Minute,
		},
		Tracing: Tracing{
			ServiceName: "starwx",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration from the process environment.
func Load(logger *slog.Logger) (Config, error) {
	return LoadFrom(os.Getenv, logger)
}

// LoadFrom builds the configuration using getenv for lookups. The YAML file
// named by STARWX_CONFIG_FILE, if any, is applied over the defaults before
// the environment.
func LoadFrom(getenv func(string) string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path := getenv("STARWX_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
		logger.Info("loaded config file", "path", path)
	}

	e := env{getenv: getenv, logger: logger}
	e.setString("STARWX_HTTP_ADDR", &cfg.HTTPAddr)
	e.setString("STARWX_LOG_LEVEL", &cfg.LogLevel)
	e.setBool("STARWX_TRUST_PROXY", &cfg.TrustProxy)
	e.setString("STARWX_SOURCE", &cfg.Source)
	e.setInt("STARWX_NORAD_ID", 1, &cfg.NORADID)
	e.setInt("STARWX_PROP_WORKERS", 1, &cfg.Workers)
	e.setString("STARWX_ISS_BASE_URL", &cfg.ISSBaseURL)
	e.setString("STARWX_JPL_BASE_URL", &cfg.JPLBaseURL)

	e.setBool("STARWX_ENABLE_TLE_FETCH", &cfg.TLE.EnableFetch)
	e.setString("STARWX_TLE_SOURCE_URL", &cfg.TLE.SourceURL)
	e.setList("STARWX_TLE_EXTRA_URLS", &cfg.TLE.ExtraURLs)
	e.setString("STARWX_TLE_CACHE_DIR", &cfg.TLE.CacheDir)
	e.setInt("STARWX_TLE_MAX_FILES", 1, &cfg.TLE.MaxFiles)
	e.setSeconds("STARWX_TLE_MAX_AGE", &cfg.TLE.MaxAge)
	e.setSeconds("STARWX_TLE_REFRESH_INTERVAL", &cfg.TLE.RefreshInterval)

	e.setSeconds("STARWX_PASS_STEP", &cfg.Passes.Step)
	e.setSeconds("STARWX_PASS_HORIZON", &cfg.Passes.Horizon)
	e.setInt("STARWX_PASS_MAX_HOURS", 1, &cfg.Passes.MaxHours)

	e.setSeconds("STARWX_CACHE_GRACE_PERIOD", &cfg.Cache.GracePeriod)
	e.setSeconds("STARWX_CACHE_BUFFER", &cfg.Cache.Buffer)
	e.setSeconds("STARWX_CACHE_LIVE_TTL", &cfg.Cache.LiveTTL)

	e.setInt("STARWX_STREAM_MAX_CONCURRENT", 1, &cfg.Stream.MaxConcurrentPerIP)
	e.setInt("STARWX_STREAM_MAX_TOTAL", 1, &cfg.Stream.MaxConcurrent)
	e.setSeconds("STARWX_STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepaliveInterval)
	e.setSeconds("STARWX_STREAM_INTERVAL", &cfg.Stream.Interval)

	e.setString("STARWX_REDIS_ADDR", &cfg.Redis.Addr)
	e.setString("STARWX_REDIS_PASSWORD", &cfg.Redis.Password)
	e.setInt("STARWX_REDIS_DB", 0, &cfg.Redis.DB)
	e.setSeconds("STARWX_REDIS_TTL", &cfg.Redis.TTL)

	e.setBool("STARWX_TRACING_ENABLED", &cfg.Tracing.Enabled)
	e.setString("STARWX_TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	e.setString("STARWX_TRACING_EXPORTER", &cfg.Tracing.Exporter)
	e.setString("STARWX_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	e.setRatio("STARWX_TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)

	cfg.Source = strings.ToLower(cfg.Source)
	cfg.Tracing.Exporter = strings.ToLower(cfg.Tracing.Exporter)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate reports settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceISS, SourceSGP4:
	default:
		errs = append(errs, fmt.Errorf("source must be %q or %q, got %q", SourceISS, SourceSGP4, c.Source))
	}
	if c.Passes.Step <= 0 {
		errs = append(errs, errors.New("passes.step must be positive"))
	}
	if c.Passes.Horizon < c.Passes.Step {
		errs = append(errs, errors.New("passes.horizon must be at least one step"))
	}
	if c.Passes.MaxHours < 1 {
		errs = append(errs, errors.New("passes.max_hours must be at least 1"))
	}
	if c.Stream.Interval <= 0 || c.Stream.KeepaliveInterval <= 0 {
		errs = append(errs, errors.New("stream intervals must be positive"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// env applies STARWX_* overrides. A malformed value keeps the current
// setting and logs a warning.
type env struct {
	getenv func(string) string
	logger *slog.Logger
}

func (e env) setString(key string, dst *string) {
	if v := e.getenv(key); v != "" {
		*dst = v
	}
}

func (e env) setBool(key string, dst *bool) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}

func (e env) setInt(key string, floor int, dst *int) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		e.logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

// seconds parses a positive whole number of seconds.
func (e env) setSeconds(key string, dst *time.Duration) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		e.logger.Warn("invalid "+key+" value, using default", "value", v, "default_seconds", dst.Seconds())
		return
	}
	*dst = time.Duration(n) * time.Second
}

func (e env) setRatio(key string, dst *float64) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		e.logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

func (e env) setList(key string, dst *[]string) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}
