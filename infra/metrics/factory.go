package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/vending/core/factory"
	coremetrics "github.com/kilianp07/vending/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	_ = coremetrics.RegisterMetricsSink("stats", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Window int `json:"window"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewStatsSink(c.Window), nil
	})
}
