package routes

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/ntentasd/bopstack-api/internal/analyzer"
	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/internal/tags"
	"github.com/ntentasd/bopstack-api/pkg/types"
	"github.com/ntentasd/bopstack-api/pkg/utils"
)

func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	names := make([]string, 0, len(app.Backends))
	for name := range app.Backends {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := app.Backends[name].Ping(ctx); err != nil {
			app.logger.Warn().Err(err).Str("backend", name).Msg("health check failed")
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	utils.ReplyJSON(w, status, utils.Body{
		"state":  state,
		"checks": checks,
	})
}

func (app *App) rigsHandler(w http.ResponseWriter, r *http.Request) {
	utils.ReplyJSON(w, http.StatusOK, utils.Body{
		"rigs":          tags.Rigs(),
		"aliases":       tags.Aliases(),
		"stack_order":   tags.StackOrder,
		"valve_classes": tags.ValveClasses(),
	})
}

// report runs the analysis for the request and writes the error reply
// itself when it fails.
func (app *App) report(w http.ResponseWriter, r *http.Request) (*types.Report, bool) {
	rig := mux.Vars(r)["rig"]

	req, err := parseRequest(rig, r.URL.Query())
	if err != nil {
		utils.ReplyBadRequest(w, err.Error())
		return nil, false
	}

	report, err := app.Analyzer.Analyze(r.Context(), req)
	if err != nil {
		app.replyError(w, rig, err)
		return nil, false
	}
	return report, true
}

func (app *App) replyError(w http.ResponseWriter, rig string, err error) {
	switch {
	case errors.Is(err, tags.ErrUnknownRig), errors.Is(err, analyzer.ErrNoData):
		utils.ReplyNotFound(w, err.Error())
	case errors.Is(err, analyzer.ErrInvalidRange),
		errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, types.ErrInvalidValveClass):
		utils.ReplyBadRequest(w, err.Error())
	case errors.Is(err, analyzer.ErrFetchFailed):
		utils.ReplyBadGateway(w, err.Error())
	default:
		app.logger.Error().Err(err).Str("rig", rig).Msg("analysis failed")
		utils.ReplyInternalServerError(w)
	}
}

func (app *App) reportHandler(w http.ResponseWriter, r *http.Request) {
	if report, ok := app.report(w, r); ok {
		utils.ReplyJSON(w, http.StatusOK, report)
	}
}

func (app *App) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if report, ok := app.report(w, r); ok {
		utils.ReplyJSON(w, http.StatusOK, utils.Body{
			"rig":            report.Rig,
			"data":           report.Events,
			"fetch_failures": report.FetchFailures,
		})
	}
}

func (app *App) cyclesHandler(w http.ResponseWriter, r *http.Request) {
	if report, ok := app.report(w, r); ok {
		utils.ReplyJSON(w, http.StatusOK, utils.Body{
			"rig":     report.Rig,
			"data":    report.Cycles,
			"summary": report.CycleSummary,
		})
	}
}

func (app *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	if report, ok := app.report(w, r); ok {
		utils.ReplyJSON(w, http.StatusOK, utils.Body{
			"rig":  report.Rig,
			"data": report.Stats,
		})
	}
}

func (app *App) podsHandler(w http.ResponseWriter, r *http.Request) {
	if report, ok := app.report(w, r); ok {
		utils.ReplyJSON(w, http.StatusOK, utils.Body{
			"rig":         report.Rig,
			"data":        report.Pods,
			"accumulator": report.Accumulator,
		})
	}
}

func (app *App) edsHandler(w http.ResponseWriter, r *http.Request) {
	if report, ok := app.report(w, r); ok {
		utils.ReplyJSON(w, http.StatusOK, utils.Body{
			"rig":  report.Rig,
			"data": report.EDS,
		})
	}
}
