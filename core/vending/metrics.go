package vending

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	itemsTotal       *prometheus.CounterVec
	dispenseLatency  *prometheus.HistogramVec
	ordersTotal      *prometheus.CounterVec
	shelvesOnline    prometheus.Gauge
	publishFailures  prometheus.Counter
	queueDepth       prometheus.Gauge
	responseMismatch prometheus.Counter
)

type collectors struct {
	items    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	orders   *prometheus.CounterVec
	online   prometheus.Gauge
	pubFail  prometheus.Counter
	depth    prometheus.Gauge
	mismatch prometheus.Counter
}

// newCollectors creates new metric collectors.
func newCollectors() collectors {
	return collectors{
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vending_items_total",
				Help: "Items reaching a terminal status, by shelf and status",
			},
			[]string{"shelf", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vending_dispense_latency_seconds",
				Help:    "Latency from command publish to shelf response",
				Buckets: []float64{0.5, 1, 2, 3, 5, 8, 10, 15, 20},
			},
			[]string{"shelf"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vending_orders_total",
				Help: "Completed orders by outcome",
			},
			[]string{"outcome"},
		),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vending_shelves_online",
			Help: "Number of shelves with a fresh heartbeat",
		}),
		pubFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vending_command_publish_failures_total",
			Help: "Number of shelf commands that could not be published",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vending_order_queue_depth",
			Help: "Orders waiting behind the active one",
		}),
		mismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vending_response_mismatch_total",
			Help: "Shelf responses ignored because no command was pending on that shelf",
		}),
	}
}

func (c collectors) install() {
	itemsTotal = c.items
	dispenseLatency = c.latency
	ordersTotal = c.orders
	shelvesOnline = c.online
	publishFailures = c.pubFail
	queueDepth = c.depth
	responseMismatch = c.mismatch
}

func init() {
	newCollectors().install()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers vending metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(itemsTotal, dispenseLatency, ordersTotal, shelvesOnline,
		publishFailures, queueDepth, responseMismatch)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().install()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
