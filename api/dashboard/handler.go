// Package dashboard serves the aggregate views behind the sustainability
// dashboard. Every route accepts ?tz= (IANA name) and falls back to the
// configured zone.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/kilianp07/carbonlane/api/respond"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
	"github.com/kilianp07/carbonlane/core/metrics/eco"
	"github.com/kilianp07/carbonlane/core/timebucket"
	"github.com/kilianp07/carbonlane/pkg/export"
)

// DefaultBucketMinutes is the emissions slot width when ?bucket= is absent.
const DefaultBucketMinutes = 5

// Views is the engine surface used by the handlers.
type Views interface {
	Summary(ctx context.Context, loc *time.Location) (eco.Summary, error)
	HourlyTrend(ctx context.Context, window time.Duration, loc *time.Location) ([]eco.HourBucket, error)
	EmissionsSeries(ctx context.Context, width time.Duration, loc *time.Location) ([]eco.EmissionPoint, error)
	Hotspots(ctx context.Context, loc *time.Location) (eco.Hotspots, error)
	IdleHistogram(ctx context.Context) ([]eco.IdleBucket, error)
}

// Handlers builds the dashboard endpoints.
type Handlers struct {
	views Views
	loc   *time.Location
	log   logger.Logger
}

// New returns Handlers reporting in loc unless a request overrides it.
func New(v Views, loc *time.Location, log logger.Logger) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handlers{views: v, loc: loc, log: log}
}

func (h *Handlers) zone(r *http.Request) (*time.Location, error) {
	name := r.URL.Query().Get("tz")
	if name == "" {
		return h.loc, nil
	}
	return timebucket.LoadZone(name)
}

// Summary serves GET /metrics.
func (h *Handlers) Summary() http.Handler {
	return h.serve(func(r *http.Request, loc *time.Location) (any, error) {
		return h.views.Summary(r.Context(), loc)
	})
}

// Trends serves GET /trends: per-hour car counts and idle seconds over the
// last day.
func (h *Handlers) Trends() http.Handler {
	return h.serve(func(r *http.Request, loc *time.Location) (any, error) {
		b, err := h.views.HourlyTrend(r.Context(), eco.DefaultTrendWindow, loc)
		if b == nil && err == nil {
			b = []eco.HourBucket{}
		}
		return b, err
	})
}

// Emissions serves GET /emissions-timeseries?bucket=N.
func (h *Handlers) Emissions() http.Handler {
	return h.serve(func(r *http.Request, loc *time.Location) (any, error) {
		minutes, err := respond.IntQuery(r, "bucket", DefaultBucketMinutes)
		if err != nil {
			return nil, err
		}
		return h.views.EmissionsSeries(r.Context(), time.Duration(minutes)*time.Minute, loc)
	})
}

// Hotspots serves GET /hotspots.
func (h *Handlers) Hotspots() http.Handler {
	return h.serve(func(r *http.Request, loc *time.Location) (any, error) {
		return h.views.Hotspots(r.Context(), loc)
	})
}

// Idle serves GET /idle-distribution.
func (h *Handlers) Idle() http.Handler {
	return h.serve(func(r *http.Request, _ *time.Location) (any, error) {
		return h.views.IdleHistogram(r.Context())
	})
}

// Report serves GET /reports?format=json|csv|xlsx|pdf as a download.
func (h *Handlers) Report(entries export.Lister, clock lane.Clock) http.Handler {
	if clock == nil {
		clock = lane.SystemClock{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc, err := h.zone(r)
		if err != nil {
			respond.Error(w, h.log, err)
			return
		}
		format := export.FormatJSON
		if s := r.URL.Query().Get("format"); s != "" {
			if format, err = export.ParseFormat(s); err != nil {
				respond.Error(w, h.log, err)
				return
			}
		}
		limit, err := respond.IntQuery(r, "limit", lane.DefaultRecentLimit)
		if err != nil {
			respond.Error(w, h.log, err)
			return
		}
		rep, err := export.Build(r.Context(), h.views, entries, loc, clock.Now(), limit)
		if err != nil {
			respond.Error(w, h.log, err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="carbonlane-report.`+string(format)+`"`)
		if err := export.Write(w, format, rep); err != nil {
			h.log.Errorf("write %s report: %v", format, err)
		}
	})
}

func (h *Handlers) serve(fn func(*http.Request, *time.Location) (any, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc, err := h.zone(r)
		if err != nil {
			respond.Error(w, h.log, err)
			return
		}
		v, err := fn(r, loc)
		if err != nil {
			respond.Error(w, h.log, err)
			return
		}
		respond.JSON(w, http.StatusOK, v)
	})
}
