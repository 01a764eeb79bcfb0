// Package analyzer runs one batch analysis: resolve the rig's tags, fetch
// their samples, run the pipeline, then memoize and publish the report.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ntentasd/bopstack-api/internal/cache"
	"github.com/ntentasd/bopstack-api/internal/fetch"
	"github.com/ntentasd/bopstack-api/internal/metrics"
	"github.com/ntentasd/bopstack-api/internal/pipeline"
	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/internal/tags"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

var (
	ErrNoData       = errors.New("no data for range")
	ErrFetchFailed  = errors.New("all fetches failed")
	ErrInvalidRange = errors.New("end must be after start")
)

// Fetcher pulls the samples of many tags at once.
type Fetcher interface {
	FetchAll(ctx context.Context, tags []string, startMs, endMs int64) *fetch.Result
}

type Publisher interface {
	Publish(ctx context.Context, report *types.Report) error
}

type Request struct {
	Rig   string
	Start time.Time
	End   time.Time
	// Windows overrides the actuation window, in seconds, per valve class.
	Windows map[types.ValveClass]float64
	// Refresh skips the cache lookup and overwrites the stored report.
	Refresh bool
}

type Analyzer struct {
	fetcher   Fetcher
	cache     cache.Cache
	publisher Publisher
	profiles  profile.Profiles
	ttl       time.Duration
	logger    zerolog.Logger
}

type Option func(*Analyzer)

func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(a *Analyzer) {
		a.cache = c
		a.ttl = ttl
	}
}

func WithPublisher(p Publisher) Option {
	return func(a *Analyzer) { a.publisher = p }
}

func WithProfiles(p profile.Profiles) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.profiles = p
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

func New(fetcher Fetcher, opts ...Option) *Analyzer {
	a := &Analyzer{
		fetcher:  fetcher,
		profiles: profile.Default(),
		ttl:      time.Hour,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Profiles returns the base valve-class profiles, before per-request
// overrides.
func (a *Analyzer) Profiles() profile.Profiles {
	return a.profiles
}

// Analyze returns the report of req, from the cache when an identical
// request was computed before.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*types.Report, error) {
	ctx, span := otel.Tracer("bopstack-analyzer").Start(ctx, "analyzer.Analyze")
	defer span.End()

	report, err := a.analyze(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (*types.Report, error) {
	span := trace.SpanFromContext(ctx)

	rt, err := tags.Resolve(req.Rig)
	if err != nil {
		return nil, err
	}
	if !req.End.After(req.Start) {
		return nil, ErrInvalidRange
	}

	cfg, err := a.config(rt, req.Windows)
	if err != nil {
		return nil, err
	}

	start, end := req.Start.UTC(), req.End.UTC()
	key, err := Key(rt.Rig, start, end, cfg)
	if err != nil {
		return nil, err
	}

	log := a.logger.With().Str("rig", rt.Rig).Time("start", start).Time("end", end).Logger()
	span.SetAttributes(
		attribute.String("rig", rt.Rig),
		attribute.String("cache.key", key),
	)

	if req.Refresh {
		span.SetAttributes(attribute.Bool("cache.refresh", true))
	} else if report, ok := a.cached(ctx, key, log); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return report, nil
	}

	t0 := time.Now()
	res := a.fetcher.FetchAll(ctx, rt.TagIDs(), start.UnixMilli(), end.UnixMilli())
	if res.Failed() {
		log.Error().Int("failures", len(res.Failures)).Msg("every fetch failed")
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, res.Failures[0].Error)
	}
	for _, f := range res.Failures {
		log.Warn().Str("tag", f.Tag).Str("err", f.Error).Msg("tag missing from report")
	}

	report := pipeline.Run(Inputs(rt, res.Series), cfg)
	report.Rig = rt.Rig
	report.Start = start
	report.End = end
	report.FetchFailures = res.Failures

	metrics.AnalysisLatencySeconds.WithLabelValues(rt.Rig).Observe(time.Since(t0).Seconds())
	metrics.EventsExtractedTotal.WithLabelValues(rt.Rig).Add(float64(len(report.Events)))
	metrics.CyclesReconstructedTotal.WithLabelValues(rt.Rig).Add(float64(len(report.Cycles)))

	log.Info().
		Int("events", len(report.Events)).
		Int("cycles", len(report.Cycles)).
		Dur("took", time.Since(t0)).
		Msg("analysis complete")

	if len(report.Events) == 0 {
		return nil, ErrNoData
	}

	// partial reports are served but not remembered
	if a.cache != nil && len(res.Failures) == 0 {
		if err := a.cache.StoreReport(ctx, key, report, a.ttl); err != nil {
			log.Warn().Err(err).Msg("failed to cache report")
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, report); err != nil {
			log.Error().Err(err).Msg("failed to publish report")
		}
	}

	return report, nil
}

func (a *Analyzer) cached(ctx context.Context, key string, log zerolog.Logger) (*types.Report, bool) {
	if a.cache == nil {
		return nil, false
	}

	raw, err := a.cache.FetchReport(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("cache unavailable")
		}
		return nil, false
	}

	var report types.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable cached report")
		return nil, false
	}
	log.Debug().Msg("serving cached report")
	return &report, true
}

func (a *Analyzer) config(rt *tags.RigTags, windows map[types.ValveClass]float64) (pipeline.Config, error) {
	profiles := a.profiles
	for class, sec := range windows {
		profiles = profiles.WithWindow(class, sec)
	}
	if err := profiles.Validate(); err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		Profiles:         profiles,
		Classes:          rt.Classes(),
		StackOrder:       rt.StackOrder(),
		EDSWindow:        pipeline.DefaultEDSWindow,
		EDSChannels:      tags.EDSChannels,
		AccumulatorScale: rt.AccumulatorScale,
		WetThreshold:     pipeline.DefaultWetThreshold,
		RareThreshold:    pipeline.DefaultRareThreshold,
	}, nil
}

// DayRange widens [from, to] to whole UTC days: midnight of from's day
// through the last millisecond of to's day.
func DayRange(from, to time.Time) (time.Time, time.Time) {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Millisecond)
	return start, end
}

// Key identifies a report by everything that can change its content.
func Key(rig string, start, end time.Time, cfg pipeline.Config) (string, error) {
	b, err := json.Marshal(struct {
		Rig    string          `json:"rig"`
		Start  int64           `json:"start"`
		End    int64           `json:"end"`
		Config pipeline.Config `json:"config"`
	}{rig, start.UnixMilli(), end.UnixMilli(), cfg})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return "report:" + hex.EncodeToString(sum[:]), nil
}

// Inputs maps fetched tag series onto the pipeline's per-valve inputs.
// Raw accumulator readings are left unscaled.
func Inputs(rt *tags.RigTags, series map[string][]types.Entry) pipeline.Inputs {
	in := pipeline.Inputs{
		Valves:       make(map[string][]types.Entry, len(rt.Valves)),
		Pressure:     make(map[string][]types.Entry, len(rt.Valves)),
		EDS:          make(map[string][]types.Entry, len(rt.EDSTags)),
		Accumulator:  series[rt.AccumulatorTag],
		Pod:          series[rt.PodTag],
		WellPressure: series[rt.WellPressureTag],
	}

	for _, v := range rt.Valves {
		if s, ok := series[v.StatusTag]; ok {
			in.Valves[v.Name] = s
		}
		if s, ok := series[v.PressureTag]; ok {
			in.Pressure[v.Name] = s
		}
	}
	for ch, tag := range rt.EDSTags {
		if s, ok := series[tag]; ok {
			in.EDS[ch] = s
		}
	}
	return in
}
