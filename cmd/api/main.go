package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntentasd/bopstack-api/internal/analyzer"
	"github.com/ntentasd/bopstack-api/internal/cache"
	"github.com/ntentasd/bopstack-api/internal/config"
	"github.com/ntentasd/bopstack-api/internal/db"
	"github.com/ntentasd/bopstack-api/internal/fetch"
	"github.com/ntentasd/bopstack-api/internal/kafka"
	routes "github.com/ntentasd/bopstack-api/internal/routes"
	"github.com/ntentasd/bopstack-api/internal/tracing"
	"github.com/ntentasd/bopstack-api/internal/tsapi"
	"github.com/ntentasd/bopstack-api/internal/worker"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", tracing.ServiceName).Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.InitTracer(ctx, cfg.TempoEndpoint, cfg.OtelExporter)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	profiles, err := cfg.Profiles()
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.ProfileFile).Msg("failed to load valve profiles")
	}

	backends := make(map[string]routes.Pinger)

	var source fetch.Source
	switch cfg.SeriesBackend {
	case config.BackendTSAPI:
		c, err := tsapi.New(cfg.TSAPIURL, cfg.TSAPIKey, cfg.TSAPISecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("time-series API client")
		}
		source = c
	default:
		store, err := db.Connect(cfg.ScyllaNodes)
		if err != nil {
			logger.Fatal().Err(err).Strs("nodes", cfg.ScyllaNodes).Msg("scylla")
		}
		defer store.Close()
		source = store
	}

	pool := fetch.NewPool(source,
		fetch.WithWorkers(cfg.FetchWorkers),
		fetch.WithLogger(logger.With().Str("component", "fetch").Logger()),
	)

	opts := []analyzer.Option{
		analyzer.WithProfiles(profiles),
		analyzer.WithLogger(logger.With().Str("component", "analyzer").Logger()),
	}

	if c := newCache(cfg, logger); c != nil {
		defer c.Close()
		backends["cache"] = c
		opts = append(opts, analyzer.WithCache(c, cfg.CacheTTL))
	}

	if len(cfg.KafkaBrokers) > 0 {
		topics := kafka.Topics{Events: cfg.KafkaEventsTopic, Cycles: cfg.KafkaCyclesTopic}
		if err := kafka.EnsureTopics(cfg.KafkaBrokers, topics, 6, logger); err != nil {
			logger.Warn().Err(err).Msg("could not ensure kafka topics")
		}
		pub, err := kafka.NewPublisher(cfg.KafkaBrokers, topics, logger)
		if err != nil {
			logger.Fatal().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("kafka")
		}
		defer pub.Close()
		opts = append(opts, analyzer.WithPublisher(pub))
	}

	an := analyzer.New(pool, opts...)

	sv := worker.NewSupervisor(an, cfg.RefreshRigs, cfg.RefreshInterval, cfg.RefreshLookback, logger)
	sv.Start(ctx)
	defer sv.Stop()

	app := routes.New(an, backends, logger.With().Str("component", "http").Logger())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           routes.NewMux(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Str("backend", cfg.SeriesBackend).Str("cache", cfg.CacheDriver).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server")
	}
}

func newCache(cfg *config.Config, logger zerolog.Logger) cache.Cache {
	switch cfg.CacheDriver {
	case config.DriverValkey:
		addrs, err := cache.ResolveValkeyAddrs(cfg.ValkeyNodes, cfg.ValkeyService)
		if err != nil {
			logger.Fatal().Err(err).Msg("valkey")
		}
		return cache.NewValkey(addrs)
	case config.DriverMemcached:
		return cache.NewMemcached(cfg.MemcachedAddr...)
	case config.DriverBadger:
		b, err := cache.NewBadger(cfg.BadgerPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.BadgerPath).Msg("badger")
		}
		return b
	default:
		return nil
	}
}
