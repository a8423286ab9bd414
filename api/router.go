// Package api assembles the HTTP surface of the drive-through service.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kilianp07/carbonlane/api/credits"
	"github.com/kilianp07/carbonlane/api/dashboard"
	"github.com/kilianp07/carbonlane/api/lanes"
	"github.com/kilianp07/carbonlane/api/respond"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/ledger"
	"github.com/kilianp07/carbonlane/core/logger"
	"github.com/kilianp07/carbonlane/pkg/export"
)

// Deps are the services behind the routes.
type Deps struct {
	Lane    lanes.Lane
	Views   dashboard.Views
	Entries export.Lister
	Ledger  ledger.Ledger
	Clock   lane.Clock
	// Zone is the default reporting time zone.
	Zone        *time.Location
	CORSOrigins []string
	// Health reports backend readiness for /healthz; nil means always ready.
	Health func(ctx context.Context) error
	Log    logger.Logger
}

// NewRouter registers every route with method matching and wraps the mux
// with request logging, panic recovery and CORS.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	r := mux.NewRouter()

	r.Handle("/car-entries/enter", lanes.NewEnterHandler(d.Lane, log)).Methods(http.MethodPost)
	r.Handle("/car-entries/exit", lanes.NewExitHandler(d.Lane, log)).Methods(http.MethodPost)
	r.Handle("/car-entries/pending", lanes.NewPendingHandler(d.Lane, log)).Methods(http.MethodGet)
	r.Handle("/car-entries", lanes.NewListHandler(d.Lane, log)).Methods(http.MethodGet)

	dash := dashboard.New(d.Views, d.Zone, log)
	r.Handle("/metrics", dash.Summary()).Methods(http.MethodGet)
	r.Handle("/trends", dash.Trends()).Methods(http.MethodGet)
	r.Handle("/emissions-timeseries", dash.Emissions()).Methods(http.MethodGet)
	r.Handle("/hotspots", dash.Hotspots()).Methods(http.MethodGet)
	r.Handle("/idle-distribution", dash.Idle()).Methods(http.MethodGet)
	if d.Entries != nil {
		r.Handle("/reports", dash.Report(d.Entries, d.Clock)).Methods(http.MethodGet)
	}

	r.Handle("/carbon-neutral/account", credits.NewAccountHandler(d.Ledger, log)).Methods(http.MethodGet)
	r.Handle("/carbon-neutral/purchase", credits.NewPurchaseHandler(d.Ledger, log)).Methods(http.MethodPost)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			if err := d.Health(req.Context()); err != nil {
				respond.Message(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Message(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Message(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var h http.Handler = r
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log}), handlers.PrintRecoveryStack(false))(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, requestLogger(log))
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
}

func requestLogger(log logger.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		log.Infow("http request", map[string]any{
			"method":      p.Request.Method,
			"path":        p.URL.Path,
			"status":      p.StatusCode,
			"bytes":       p.Size,
			"duration_ms": time.Since(p.TimeStamp).Milliseconds(),
		})
	}
}

type recoveryLogger struct{ log logger.Logger }

func (l recoveryLogger) Println(args ...any) {
	l.log.Errorf("panic serving request: %s", fmt.Sprint(args...))
}
