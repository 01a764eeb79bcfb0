// Package routes
package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ntentasd/bopstack-api/internal/metrics"
	"github.com/ntentasd/bopstack-api/pkg/utils"
)

func NewMux(app *App) http.Handler {
	r := mux.NewRouter()

	// health check
	r.HandleFunc("/healthz", app.healthHandler).Methods(http.MethodGet)

	// metrics
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(latencyMiddleware)

	api.HandleFunc("/rigs", app.rigsHandler).Methods(http.MethodGet)

	// reports and their slices
	api.HandleFunc("/rigs/{rig}/report", app.reportHandler).Methods(http.MethodGet)
	api.HandleFunc("/rigs/{rig}/events", app.eventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/rigs/{rig}/cycles", app.cyclesHandler).Methods(http.MethodGet)
	api.HandleFunc("/rigs/{rig}/stats", app.statsHandler).Methods(http.MethodGet)
	api.HandleFunc("/rigs/{rig}/pods", app.podsHandler).Methods(http.MethodGet)
	api.HandleFunc("/rigs/{rig}/eds", app.edsHandler).Methods(http.MethodGet)

	return otelhttp.NewHandler(utils.WithCORS(r), "bopstack-api")
}

func latencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HttpRequestLatencySeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
