package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntentasd/bopstack-api/internal/analyzer"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (*types.Report, error)
}

// Supervisor periodically re-analyzes a trailing range for each rig so the
// reports dashboards ask for are already cached.
type Supervisor struct {
	Analyzer Analyzer
	Rigs     []string
	Interval time.Duration
	Lookback time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	cancelCtx context.CancelFunc
	wg        sync.WaitGroup
}

// NewSupervisor creates a new background worker for report refreshes.
func NewSupervisor(a Analyzer, rigs []string, interval, lookback time.Duration, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		Analyzer: a,
		Rigs:     rigs,
		Interval: interval,
		Lookback: lookback,
		logger:   logger.With().Str("component", "supervisor").Logger(),
		now:      time.Now,
	}
}

// Start refreshes once immediately and then on every tick until ctx is
// done or Stop is called.
func (s *Supervisor) Start(ctx context.Context) {
	if len(s.Rigs) == 0 || s.Interval <= 0 {
		s.logger.Info().Msg("no rigs to refresh, supervisor disabled")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelCtx = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.logger.Info().Strs("rigs", s.Rigs).Dur("interval", s.Interval).Msg("started report refresher")
		s.RefreshAll(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("stopped")
				return
			case <-ticker.C:
				s.RefreshAll(ctx)
			}
		}
	}()
}

// Stop gracefully stops the background worker and waits for it.
func (s *Supervisor) Stop() {
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	s.wg.Wait()
}

// RefreshAll recomputes the trailing range of every rig. The range covers
// whole UTC days, the same span a YYYY-MM-DD request resolves to, so the
// stored report is the one the API looks up.
func (s *Supervisor) RefreshAll(ctx context.Context) {
	now := s.now()
	start, end := analyzer.DayRange(now.Add(-s.Lookback), now)

	for _, rig := range s.Rigs {
		if ctx.Err() != nil {
			return
		}

		log := s.logger.With().Str("rig", rig).Logger()
		report, err := s.Analyzer.Analyze(ctx, analyzer.Request{Rig: rig, Start: start, End: end, Refresh: true})
		switch {
		case errors.Is(err, analyzer.ErrNoData):
			log.Debug().Msg("no actuations in range")
		case err != nil:
			log.Error().Err(err).Msg("refresh failed")
		default:
			log.Debug().Int("events", len(report.Events)).Msg("refreshed")
		}
	}
}
