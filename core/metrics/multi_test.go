package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vending/core/factory"
	"github.com/kilianp07/vending/core/model"
)

type recordSink struct {
	dispenses int
	orders    int
	err       error
}

func (r *recordSink) RecordDispense(DispenseEvent) error {
	r.dispenses++
	return r.err
}

func (r *recordSink) RecordOrder(OrderEvent) error {
	r.orders++
	return nil
}

type dispenseOnly struct{ n int }

func (d *dispenseOnly) RecordDispense(DispenseEvent) error { d.n++; return nil }

func TestMultiSink_ForwardsToAll(t *testing.T) {
	failing := &recordSink{err: errors.New("boom")}
	ok := &recordSink{}
	plain := &dispenseOnly{}
	m := NewMultiSink(failing, ok, plain)

	err := m.RecordDispense(DispenseEvent{ItemID: 1})
	assert.Error(t, err)
	assert.Equal(t, 1, failing.dispenses)
	assert.Equal(t, 1, ok.dispenses)
	assert.Equal(t, 1, plain.n)

	require.NoError(t, m.RecordOrder(OrderEvent{}))
	assert.Equal(t, 1, ok.orders)
	require.NoError(t, m.RecordShelfHealth(ShelfHealthEvent{}))
}

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	_ = RegisterMetricsSink("dispense_only", func(map[string]any) (MetricsSink, error) {
		return &dispenseOnly{}, nil
	})
	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "dispense_only"}, {Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, &dispenseOnly{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "dispense_only"}, {Type: "dispense_only"}})
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics sink 1 (missing)")
}

func TestNewOrderEvent(t *testing.T) {
	start := time.Now()
	res := model.OrderResult{
		OrderID:     "o1",
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
		Items: []model.ItemOutcome{
			{ItemID: 1, Status: model.StatusDispensed},
			{ItemID: 2, Status: model.StatusFailed},
			{ItemID: 30, Status: model.StatusDisconnected},
		},
	}
	ev := NewOrderEvent(res)
	assert.Equal(t, 3, ev.Items)
	assert.Equal(t, 1, ev.Dispensed)
	assert.Equal(t, 1, ev.Failed)
	assert.Equal(t, 1, ev.Disconnected)
	assert.Equal(t, 2*time.Second, ev.Duration)
}
