package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/vending/api"
	"github.com/kilianp07/vending/auth"
	"github.com/kilianp07/vending/config"
	"github.com/kilianp07/vending/core/dispense/logging"
	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
	coremon "github.com/kilianp07/vending/core/monitoring"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
	"github.com/kilianp07/vending/core/vending"
	"github.com/kilianp07/vending/infra/logger"
	"github.com/kilianp07/vending/infra/metrics"
	"github.com/kilianp07/vending/infra/monitoring"
	"github.com/kilianp07/vending/infra/mqtt"
	"github.com/kilianp07/vending/infra/store"
	"github.com/kilianp07/vending/internal/eventbus"
)

// Service wires the dispense engine, the shelf transport, the store and the
// HTTP API.
type Service struct {
	Engine *vending.Engine

	cfg     *config.Config
	client  coremqtt.Transport
	store   *store.SQLiteStore
	logs    logging.LogStore
	bus     *eventbus.TypedBus[model.StatusEvent]
	sinks   []coremetrics.MetricsSink
	handler http.Handler
	log     logger.Logger
}

// New creates a Service from the configuration. The MQTT connection is
// established here.
func New(cfg *config.Config) (*Service, error) {
	return newService(cfg, func(c mqtt.Config) (coremqtt.Transport, error) {
		client, err := mqtt.NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

func newService(cfg *config.Config, dial func(mqtt.Config) (coremqtt.Transport, error)) (s *Service, err error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	s = &Service{cfg: cfg, log: logg, bus: eventbus.NewTyped[model.StatusEvent]()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.store, err = store.NewSQLiteStore(cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if s.logs, err = logging.NewStore(cfg.DispenseLog); err != nil {
		return nil, fmt.Errorf("dispense log: %w", err)
	}

	configured, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	prom, err := metrics.NewPromSink()
	if err != nil {
		return nil, fmt.Errorf("prom sink: %w", err)
	}
	stats := metrics.NewStatsSink(0)
	s.sinks = append(flatten(configured), prom, stats)

	if s.client, err = dial(cfg.MQTT); err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	s.Engine, err = vending.NewEngine(cfg.Vending, s.client,
		vending.WithLogger(logger.New("vending")),
		vending.WithBroadcaster(s.bus),
		vending.WithMetricsSink(coremetrics.NewMultiSink(s.sinks...)),
		vending.WithLogStore(s.logs),
	)
	if err != nil {
		return nil, fmt.Errorf("dispense engine: %w", err)
	}
	s.client.Listen(s.Engine)

	s.handler = api.NewHandler(api.Deps{
		Store:    s.store,
		Engine:   s.Engine,
		Auth:     auth.NewService(s.store, logger.New("auth")),
		Bus:      s.bus,
		Stats:    stats,
		Logs:     s.logs,
		ImageDir: cfg.HTTP.ImageDir,
		Log:      logger.New("api"),
	})
	return s, nil
}

// flatten unwraps a MultiSink. The no-op sink is dropped and so is a
// configured Prometheus sink, which the service always installs itself.
func flatten(s coremetrics.MetricsSink) []coremetrics.MetricsSink {
	all := []coremetrics.MetricsSink{s}
	if m, ok := s.(*coremetrics.MultiSink); ok {
		all = m.Sinks
	}
	var out []coremetrics.MetricsSink
	for _, sink := range all {
		switch sink.(type) {
		case coremetrics.NopSink, *metrics.PromSink:
			continue
		}
		out = append(out, sink)
	}
	return out
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run starts the engine, the status collectors and the HTTP server, and
// blocks until the context is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, sink := range s.sinks {
		if rec, ok := sink.(coremetrics.StatusRecorder); ok {
			metrics.StartEventCollector(ctx, s.bus, rec)
		}
	}

	errc := make(chan error, 2)
	go func() { errc <- s.Engine.Run(ctx) }()
	go func() { errc <- api.Serve(ctx, s.cfg.HTTP.Addr, s.handler, s.log) }()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
			s.log.Errorf("service stopped: %v", err)
		}
		cancel()
	}
	return first
}

type closer interface{ Close() }

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Engine != nil {
		errs = append(errs, s.Engine.Close())
	}
	if s.client != nil {
		s.client.Disconnect()
	}
	s.bus.Close()
	if s.logs != nil {
		errs = append(errs, s.logs.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	for _, sink := range s.sinks {
		if c, ok := sink.(closer); ok {
			c.Close()
		}
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
