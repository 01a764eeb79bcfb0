package routes

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ntentasd/bopstack-api/internal/analyzer"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (*types.Report, error)
}

// Pinger is any backend the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Analyzer Analyzer
	Backends map[string]Pinger
	logger   zerolog.Logger
}

func New(a Analyzer, backends map[string]Pinger, logger zerolog.Logger) *App {
	return &App{
		a,
		backends,
		logger,
	}
}
