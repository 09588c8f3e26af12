package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vending/core/factory"
	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordDispense(coremetrics.DispenseEvent{Shelf: 2, Quantity: 3, Status: model.StatusDispensed}))
	require.NoError(t, sink.RecordDispense(coremetrics.DispenseEvent{Shelf: 2, Quantity: 5, Status: model.StatusFailed}))
	require.NoError(t, sink.RecordShelfHealth(coremetrics.ShelfHealthEvent{Shelf: 4, Online: true}))
	require.NoError(t, sink.RecordOrder(coremetrics.OrderEvent{Duration: 2 * time.Second}))
	require.NoError(t, sink.RecordStatus(model.CompleteEvent("o", true)))

	assert.Equal(t, 3.0, testutil.ToFloat64(sink.units.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.shelf.WithLabelValues("4")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.status.WithLabelValues("orderComplete", "")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestPromSinkReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordDispense(coremetrics.DispenseEvent{Shelf: 1, Quantity: 1, Status: model.StatusDispensed}))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.units.WithLabelValues("1")))
}

func TestMetricsFactory(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, sink)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)

	sink, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "stats", Conf: map[string]any{"window": "8"}}})
	require.NoError(t, err)
	st, ok := sink.(*StatsSink)
	require.True(t, ok)
	assert.Equal(t, 8, st.window)
}
