// Package app wires the configured store, sinks, simulator and HTTP surface
// into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/carbonlane/api"
	"github.com/kilianp07/carbonlane/config"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/ledger"
	coremetrics "github.com/kilianp07/carbonlane/core/metrics"
	"github.com/kilianp07/carbonlane/core/metrics/eco"
	"github.com/kilianp07/carbonlane/infra/logger"
	"github.com/kilianp07/carbonlane/infra/metrics"
	"github.com/kilianp07/carbonlane/infra/mqtt"
	"github.com/kilianp07/carbonlane/infra/store"
	"github.com/kilianp07/carbonlane/internal/eventbus"
)

// Service owns every long-lived component.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	clock     lane.Clock
	Store     lane.Store
	Sink      coremetrics.LaneSink
	Simulator *lane.Simulator
	Engine    *eco.Engine
	Ledger    *ledger.MemoryLedger
	Handler   http.Handler

	bus        *eventbus.TypedBus[lane.Event]
	subscriber *mqtt.DetectionSubscriber
	newStore   func() (lane.Store, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock shared by the simulator, engine and ledger.
func WithClock(c lane.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithStore bypasses the configured store backend.
func WithStore(st lane.Store) Option {
	return func(s *Service) {
		s.newStore = func() (lane.Store, error) { return st, nil }
	}
}

// New builds the service from cfg.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if !logger.SetLevel(cfg.Logging.Level) {
		return nil, fmt.Errorf("app: unknown log level %q", cfg.Logging.Level)
	}
	s := &Service{
		cfg:      cfg,
		log:      logger.New("service"),
		clock:    lane.SystemClock{},
		newStore: func() (lane.Store, error) { return store.New(cfg.Store.Module()) },
	}
	for _, opt := range opts {
		opt(s)
	}

	st, err := s.newStore()
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s.Store = st

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	s.Sink = sink

	s.bus = eventbus.NewTyped[lane.Event]()
	s.Simulator, err = lane.NewSimulator(st,
		lane.WithClock(s.clock),
		lane.WithBus(s.bus),
		lane.WithLogger(logger.New("lane")),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	s.Engine, err = eco.NewEngine(st, eco.WithClock(s.clock), eco.WithLogger(logger.New("eco")))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	s.Ledger = ledger.NewMemoryLedger(append(cfg.Ledger.Options(), ledger.WithClock(s.clock))...)

	if cfg.MQTT.Enabled() {
		s.subscriber, err = mqtt.NewDetectionSubscriber(cfg.MQTT, s.Simulator)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("mqtt subscriber: %w", err)
		}
	}

	s.Handler = api.NewRouter(api.Deps{
		Lane:        s.Simulator,
		Views:       s.Engine,
		Entries:     s.Simulator,
		Ledger:      s.Ledger,
		Clock:       s.clock,
		Zone:        cfg.HTTP.Location(),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Health:      s.health,
		Log:         logger.New("http"),
	})
	return s, nil
}

func (s *Service) health(ctx context.Context) error {
	if p, ok := s.Store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Run serves the API, the Prometheus endpoint when a prometheus sink is
// configured, and the MQTT subscriber when a broker is set. It returns when
// ctx is canceled or any of them fails.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	var snap *metrics.Snapshotter
	prom := s.cfg.Metrics.Has("prometheus")
	if prom {
		var err error
		snap, err = metrics.NewSnapshotter(s.Engine, s.cfg.Metrics.SnapshotInterval, nil, logger.New("snapshot"))
		if err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	collected := metrics.StartEventCollector(ctx, s.bus, s.Sink, logger.New("collector"))

	srv := &http.Server{Handler: s.Handler, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		s.log.Infof("api listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if prom {
		g.Go(func() error { return snap.Run(ctx) })
		g.Go(func() error { return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr) })
	}
	if s.subscriber != nil {
		g.Go(func() error { return s.subscriber.Run(ctx) })
	}
	err := g.Wait()
	<-collected
	return err
}

// Close stops event delivery and releases the sinks and the store.
func (s *Service) Close() error {
	s.bus.Close()
	if c, ok := s.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	return s.Store.Close()
}
