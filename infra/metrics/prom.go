package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
)

// PromSink records dispense outcomes in Prometheus metrics.
type PromSink struct {
	units    *prometheus.CounterVec
	duration prometheus.Histogram
	shelf    *prometheus.GaugeVec
	status   *prometheus.CounterVec
}

// NewPromSink registers sink metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	units, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_units_dispensed_total",
		Help: "Units confirmed dispensed by shelf",
	}, []string{"shelf"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vending_order_duration_seconds",
		Help:    "Time from order start to completion",
		Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
	}))
	if err != nil {
		return nil, err
	}
	shelf, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vending_shelf_online",
		Help: "1 when the shelf heartbeat is fresh",
	}, []string{"shelf"}))
	if err != nil {
		return nil, err
	}
	status, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_status_events_total",
		Help: "Status events broadcast to observers",
	}, []string{"type", "status"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{units: units, duration: duration, shelf: shelf, status: status}, nil
}

// RecordDispense counts dispensed units.
func (s *PromSink) RecordDispense(ev coremetrics.DispenseEvent) error {
	if ev.Status == model.StatusDispensed {
		s.units.WithLabelValues(strconv.Itoa(int(ev.Shelf))).Add(float64(ev.Quantity))
	}
	return nil
}

// RecordOrder observes the order duration.
func (s *PromSink) RecordOrder(ev coremetrics.OrderEvent) error {
	s.duration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordShelfHealth sets the per-shelf liveness gauge.
func (s *PromSink) RecordShelfHealth(ev coremetrics.ShelfHealthEvent) error {
	v := 0.0
	if ev.Online {
		v = 1
	}
	s.shelf.WithLabelValues(strconv.Itoa(int(ev.Shelf))).Set(v)
	return nil
}

// RecordStatus counts broadcast events.
func (s *PromSink) RecordStatus(ev model.StatusEvent) error {
	s.status.WithLabelValues(string(ev.Kind), string(ev.Status)).Inc()
	return nil
}
