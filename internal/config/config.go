// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ntentasd/bopstack-api/internal/profile"
)

const (
	BackendScylla = "scylla"
	BackendTSAPI  = "tsapi"

	DriverValkey    = "valkey"
	DriverMemcached = "memcached"
	DriverBadger    = "badger"
	DriverNone      = "none"
)

var (
	ErrUnknownBackend = errors.New("unknown series backend")
	ErrUnknownDriver  = errors.New("unknown cache driver")
	ErrMissingSetting = errors.New("missing required setting")
)

type Config struct {
	ListenAddr string

	SeriesBackend string
	ScyllaNodes   []string
	TSAPIURL      string
	TSAPIKey      string
	TSAPISecret   string
	FetchWorkers  int

	CacheDriver   string
	CacheTTL      time.Duration
	ValkeyNodes   string
	ValkeyService string
	MemcachedAddr []string
	BadgerPath    string

	KafkaBrokers     []string
	KafkaEventsTopic string
	KafkaCyclesTopic string

	TempoEndpoint string
	OtelExporter  string

	ProfileFile     string
	RefreshRigs     []string
	RefreshInterval time.Duration
	RefreshLookback time.Duration

	LogLevel string
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv and validates them.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		ListenAddr:       orDefault(getenv("LISTEN_ADDR"), ":8080"),
		SeriesBackend:    strings.ToLower(orDefault(getenv("SERIES_BACKEND"), BackendScylla)),
		ScyllaNodes:      splitList(getenv("SCYLLA_NODES")),
		TSAPIURL:         strings.TrimRight(getenv("TSAPI_URL"), "/"),
		TSAPIKey:         getenv("TSAPI_KEY"),
		TSAPISecret:      getenv("TSAPI_SECRET"),
		CacheDriver:      strings.ToLower(orDefault(getenv("CACHE_DRIVER"), DriverValkey)),
		ValkeyNodes:      getenv("VALKEY_NODES"),
		ValkeyService:    getenv("VALKEY_SERVICE"),
		MemcachedAddr:    splitList(getenv("MEMCACHED_ADDR")),
		BadgerPath:       getenv("BADGER_PATH"),
		KafkaBrokers:     splitList(getenv("KAFKA_BROKERS")),
		KafkaEventsTopic: getenv("KAFKA_EVENTS_TOPIC"),
		KafkaCyclesTopic: getenv("KAFKA_CYCLES_TOPIC"),
		TempoEndpoint:    getenv("TEMPO_ENDPOINT"),
		OtelExporter:     strings.ToLower(getenv("OTEL_EXPORTER")),
		ProfileFile:      getenv("PROFILE_FILE"),
		RefreshRigs:      splitList(getenv("REFRESH_RIGS")),
		LogLevel:         orDefault(getenv("LOG_LEVEL"), "info"),
	}

	var err error
	if cfg.FetchWorkers, err = intOr(getenv("FETCH_WORKERS"), 6); err != nil {
		return nil, fmt.Errorf("FETCH_WORKERS: %w", err)
	}
	if cfg.CacheTTL, err = durationOr(getenv("CACHE_TTL"), time.Hour); err != nil {
		return nil, fmt.Errorf("CACHE_TTL: %w", err)
	}
	if cfg.RefreshInterval, err = durationOr(getenv("REFRESH_INTERVAL"), 5*time.Minute); err != nil {
		return nil, fmt.Errorf("REFRESH_INTERVAL: %w", err)
	}
	if cfg.RefreshLookback, err = durationOr(getenv("REFRESH_LOOKBACK"), 24*time.Hour); err != nil {
		return nil, fmt.Errorf("REFRESH_LOOKBACK: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.SeriesBackend {
	case BackendScylla:
		if len(c.ScyllaNodes) == 0 {
			return fmt.Errorf("%w: SCYLLA_NODES", ErrMissingSetting)
		}
	case BackendTSAPI:
		if c.TSAPIURL == "" {
			return fmt.Errorf("%w: TSAPI_URL", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.SeriesBackend)
	}

	switch c.CacheDriver {
	case DriverValkey:
		if c.ValkeyNodes == "" && c.ValkeyService == "" {
			return fmt.Errorf("%w: VALKEY_NODES or VALKEY_SERVICE", ErrMissingSetting)
		}
	case DriverMemcached:
		if len(c.MemcachedAddr) == 0 {
			return fmt.Errorf("%w: MEMCACHED_ADDR", ErrMissingSetting)
		}
	case DriverBadger, DriverNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.CacheDriver)
	}

	if c.FetchWorkers <= 0 {
		return fmt.Errorf("FETCH_WORKERS must be positive, got %d", c.FetchWorkers)
	}
	return nil
}

// Profiles returns the valve-class profiles, overlaid with PROFILE_FILE
// when set.
func (c *Config) Profiles() (profile.Profiles, error) {
	if c.ProfileFile == "" {
		return profile.Default(), nil
	}
	return profile.LoadFile(c.ProfileFile)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intOr(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", v)
	}
	return d, nil
}
