// Package fetch pulls raw tag series from a Source over a bounded pool of
// workers, retrying transient failures.
package fetch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ntentasd/bopstack-api/internal/metrics"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

// Source returns the samples of one tag in [startMs, endMs], ordered by
// time. An empty result is not an error.
type Source interface {
	Fetch(ctx context.Context, tagID string, startMs, endMs int64) ([]types.Entry, error)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

const (
	DefaultWorkers  = 6
	DefaultMaxTries = 4
	DefaultTimeout  = 30 * time.Second
)

type Pool struct {
	source   Source
	workers  int
	maxTries uint
	timeout  time.Duration
	backoff  func() backoff.BackOff
	logger   zerolog.Logger
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithMaxTries(n uint) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxTries = n
		}
	}
}

// WithTimeout bounds each single fetch attempt.
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithBackOff(f func() backoff.BackOff) Option {
	return func(p *Pool) { p.backoff = f }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

func NewPool(source Source, opts ...Option) *Pool {
	p := &Pool{
		source:   source,
		workers:  DefaultWorkers,
		maxTries: DefaultMaxTries,
		timeout:  DefaultTimeout,
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Result struct {
	Series   map[string][]types.Entry
	Failures []types.FetchFailure
}

// Failed reports whether every requested tag failed.
func (r *Result) Failed() bool {
	return len(r.Series) == 0 && len(r.Failures) > 0
}

// FetchAll fetches every distinct tag once. Tags that still fail after the
// retries are listed in Failures and missing from Series.
func (p *Pool) FetchAll(ctx context.Context, tags []string, startMs, endMs int64) *Result {
	ctx, span := otel.Tracer("bopstack-fetch").Start(ctx, "fetch.FetchAll")
	defer span.End()

	unique := dedupe(tags)
	span.SetAttributes(
		attribute.Int("fetch.tags", len(unique)),
		attribute.Int64("fetch.start_ms", startMs),
		attribute.Int64("fetch.end_ms", endMs),
	)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.workers)
		res = &Result{Series: make(map[string][]types.Entry, len(unique))}
	)

	for _, tag := range unique {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				res.Failures = append(res.Failures, types.FetchFailure{Tag: tag, Error: ctx.Err().Error()})
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			entries, err := p.fetchOne(ctx, tag, startMs, endMs)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.FetchFailuresTotal.Inc()
				p.logger.Warn().Err(err).Str("tag", tag).Msg("fetch gave up")
				res.Failures = append(res.Failures, types.FetchFailure{Tag: tag, Error: err.Error()})
				return
			}
			metrics.FetchSamplesTotal.Add(float64(len(entries)))
			res.Series[tag] = entries
		}(tag)
	}
	wg.Wait()

	sort.Slice(res.Failures, func(i, j int) bool {
		return res.Failures[i].Tag < res.Failures[j].Tag
	})

	if len(res.Failures) > 0 {
		span.SetAttributes(attribute.Int("fetch.failures", len(res.Failures)))
		if res.Failed() {
			span.SetStatus(codes.Error, "all fetches failed")
		}
	}

	return res
}

func (p *Pool) fetchOne(ctx context.Context, tag string, startMs, endMs int64) ([]types.Entry, error) {
	op := func() ([]types.Entry, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		entries, err := p.source.Fetch(attemptCtx, tag, startMs, endMs)
		if err != nil {
			metrics.FetchAttemptsTotal.WithLabelValues("error").Inc()
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			p.logger.Debug().Err(err).Str("tag", tag).Msg("fetch attempt failed")
			return nil, err
		}
		metrics.FetchAttemptsTotal.WithLabelValues("ok").Inc()
		return entries, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backoff()),
		backoff.WithMaxTries(p.maxTries),
	)
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
