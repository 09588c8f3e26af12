package vending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vending/core/dispense/logging"
	"github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

type sentCommand struct {
	shelf model.ShelfID
	cmd   string
}

type mockClient struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (m *mockClient) SendCommand(s model.ShelfID, it model.ItemRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCommand{shelf: s, cmd: it.Command()})
	return nil
}

func (m *mockClient) Sent() []sentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCommand(nil), m.sent...)
}

type recordingBus struct {
	mu     sync.Mutex
	events []model.StatusEvent
}

func (b *recordingBus) Publish(ev model.StatusEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBus) Events() []model.StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.StatusEvent(nil), b.events...)
}

type memorySink struct {
	mu       sync.Mutex
	dispense []metrics.DispenseEvent
	orders   []metrics.OrderEvent
}

func (s *memorySink) RecordDispense(ev metrics.DispenseEvent) error {
	s.mu.Lock()
	s.dispense = append(s.dispense, ev)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) RecordOrder(ev metrics.OrderEvent) error {
	s.mu.Lock()
	s.orders = append(s.orders, ev)
	s.mu.Unlock()
	return nil
}

func startEngine(t *testing.T, cfg Config, client *mockClient, opts ...Option) (*Engine, *recordingBus) {
	t.Helper()
	ResetMetrics(nil)
	bus := &recordingBus{}
	opts = append([]Option{WithBroadcaster(bus), WithTimeouts(100*time.Millisecond, time.Hour, 10*time.Millisecond)}, opts...)
	e, err := NewEngine(cfg, client, opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = e.Close()
	})
	return e, bus
}

func bringOnline(t *testing.T, e *Engine, shelves ...model.ShelfID) {
	t.Helper()
	for _, s := range shelves {
		e.HandleHeartbeat(s)
	}
	require.Eventually(t, func() bool {
		online := map[model.ShelfID]bool{}
		for _, h := range e.Shelves() {
			online[h.Shelf] = h.Online
		}
		for _, s := range shelves {
			if !online[s] {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

type submitResult struct {
	res model.OrderResult
	err error
}

func submitAsync(e *Engine, items ...model.ItemRef) <-chan submitResult {
	ch := make(chan submitResult, 1)
	go func() {
		res, err := e.SubmitOrder(context.Background(), items)
		ch <- submitResult{res, err}
	}()
	return ch
}

func waitResult(t *testing.T, ch <-chan submitResult) submitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("order did not complete")
		return submitResult{}
	}
}

func waitSent(t *testing.T, c *mockClient, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.Sent()) >= n }, time.Second, 5*time.Millisecond)
}

func TestEngineScenarioOfflineThenDispensed(t *testing.T) {
	client := &mockClient{}
	sink := &memorySink{}
	e, bus := startEngine(t, Config{}, client, WithMetricsSink(sink))
	bringOnline(t, e, 1)

	ch := submitAsync(e, model.ItemRef{ID: 1, Quantity: 1}, model.ItemRef{ID: 30, Quantity: 2})
	waitSent(t, client, 1)
	assert.Equal(t, []sentCommand{{shelf: 1, cmd: "1,1"}}, client.Sent())

	e.HandleResponse(1, "success")
	r := waitResult(t, ch)
	require.NoError(t, r.err)
	assert.True(t, r.res.Success)
	assert.NotEmpty(t, r.res.OrderID)
	assert.Equal(t, []model.ItemOutcome{
		{ItemID: 30, Shelf: 5, Quantity: 2, Status: model.StatusDisconnected},
		{ItemID: 1, Shelf: 1, Quantity: 1, Status: model.StatusDispensed},
	}, r.res.Items)

	evs := bus.Events()
	require.Len(t, evs, 4)
	assert.Equal(t, model.StatusDisconnected, evs[0].Status)
	assert.Equal(t, 30, evs[0].ItemID)
	assert.Equal(t, model.StatusDispensing, evs[1].Status)
	assert.Equal(t, model.StatusDispensed, evs[2].Status)
	assert.Equal(t, model.EventOrderComplete, evs[3].Kind)
	require.NotNil(t, evs[3].Success)
	assert.True(t, *evs[3].Success)

	sink.mu.Lock()
	assert.Len(t, sink.dispense, 2)
	assert.Len(t, sink.orders, 1)
	sink.mu.Unlock()
	assert.Equal(t, 1.0, testutil.ToFloat64(itemsTotal.WithLabelValues("1", "Dispensed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ordersTotal.WithLabelValues("partial")))
}

func TestEngineTimeoutFailsItem(t *testing.T) {
	client := &mockClient{}
	e, bus := startEngine(t, Config{}, client)
	bringOnline(t, e, 2)

	r := waitResult(t, submitAsync(e, model.ItemRef{ID: 5, Quantity: 1}))
	require.NoError(t, r.err)
	require.Len(t, r.res.Items, 1)
	assert.Equal(t, model.StatusFailed, r.res.Items[0].Status)
	assert.Len(t, client.Sent(), 1)

	var failed int
	for _, ev := range bus.Events() {
		if ev.Status == model.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestEngineIgnoresCrossTalk(t *testing.T) {
	const timeout = 300 * time.Millisecond
	client := &mockClient{}
	e, _ := startEngine(t, Config{}, client, WithTimeouts(timeout, 0, 0))
	bringOnline(t, e, 1, 2)

	ch := submitAsync(e, model.ItemRef{ID: 1, Quantity: 1})
	waitSent(t, client, 1)
	sent := time.Now()

	// a response from shelf 2 late in the wait must neither resolve the
	// item on shelf 1 nor push its deadline back
	time.Sleep(200 * time.Millisecond)
	e.HandleResponse(2, "success")

	r := waitResult(t, ch)
	elapsed := time.Since(sent)
	require.NoError(t, r.err)
	assert.Equal(t, model.StatusFailed, r.res.Items[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(responseMismatch))
	assert.Less(t, elapsed, 200*time.Millisecond+timeout-50*time.Millisecond,
		"deadline was re-armed by the foreign response")
}

func TestEnginePublishErrorContinues(t *testing.T) {
	client := &mockClient{err: errors.New("publish refused")}
	e, _ := startEngine(t, Config{}, client)
	bringOnline(t, e, 1)

	r := waitResult(t, submitAsync(e, model.ItemRef{ID: 1, Quantity: 1}, model.ItemRef{ID: 2, Quantity: 1}))
	require.NoError(t, r.err)
	require.Len(t, r.res.Items, 2)
	assert.Equal(t, 2, r.res.Count(model.StatusFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(publishFailures))
}

func TestEngineNotConnectedFailsItem(t *testing.T) {
	client := &mockClient{err: coremqtt.ErrNotConnected}
	e, bus := startEngine(t, Config{}, client)
	bringOnline(t, e, 1)

	r := waitResult(t, submitAsync(e, model.ItemRef{ID: 3, Quantity: 1}))
	require.NoError(t, r.err)
	require.Len(t, r.res.Items, 1)
	assert.Equal(t, model.StatusFailed, r.res.Items[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(publishFailures))
	for _, ev := range bus.Events() {
		assert.NotEqual(t, model.StatusDispensing, ev.Status)
	}
}

func TestEngineOrdersRunOneAfterAnother(t *testing.T) {
	client := &mockClient{}
	e, _ := startEngine(t, Config{}, client, WithTimeouts(time.Minute, 0, 0))
	bringOnline(t, e, 1)

	first := submitAsync(e, model.ItemRef{ID: 1, Quantity: 1})
	waitSent(t, client, 1)
	second := submitAsync(e, model.ItemRef{ID: 2, Quantity: 1})
	require.Eventually(t, func() bool { return testutil.ToFloat64(queueDepth) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, client.Sent(), 1)

	e.HandleResponse(1, "success")
	r1 := waitResult(t, first)
	require.NoError(t, r1.err)
	waitSent(t, client, 2)
	assert.Equal(t, "2,1", client.Sent()[1].cmd)

	e.HandleResponse(1, "success")
	r2 := waitResult(t, second)
	require.NoError(t, r2.err)
	assert.NotEqual(t, r1.res.OrderID, r2.res.OrderID)
	assert.True(t, r2.res.AllDispensed())
}

func TestEngineQueueFull(t *testing.T) {
	client := &mockClient{}
	e, _ := startEngine(t, Config{MaxPendingOrders: 1}, client, WithTimeouts(time.Minute, 0, 0))
	bringOnline(t, e, 1)

	first := submitAsync(e, model.ItemRef{ID: 1, Quantity: 1})
	waitSent(t, client, 1)
	_, err := e.SubmitOrder(context.Background(), []model.ItemRef{{ID: 2, Quantity: 1}})
	assert.ErrorIs(t, err, ErrQueueFull)

	e.HandleResponse(1, "success")
	require.NoError(t, waitResult(t, first).err)
}

func TestEngineInvalidOrder(t *testing.T) {
	e, _ := startEngine(t, Config{}, &mockClient{})
	_, err := e.SubmitOrder(context.Background(), []model.ItemRef{{ID: 40, Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestEngineSubmitContextCancelled(t *testing.T) {
	client := &mockClient{}
	e, _ := startEngine(t, Config{}, client, WithTimeouts(time.Minute, 0, 0))
	bringOnline(t, e, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := e.SubmitOrder(ctx, []model.ItemRef{{ID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, res.OrderID)
}

func TestEngineSweepMarksStaleShelvesOffline(t *testing.T) {
	e, _ := startEngine(t, Config{}, &mockClient{}, WithTimeouts(0, 50*time.Millisecond, 10*time.Millisecond))
	bringOnline(t, e, 3)
	assert.True(t, e.IsLinkHealthy())
	require.Eventually(t, func() bool { return !e.IsLinkHealthy() }, time.Second, 5*time.Millisecond)
}

func TestEngineShelvesTracksLatestHeartbeat(t *testing.T) {
	e, _ := startEngine(t, Config{}, &mockClient{})
	bringOnline(t, e, 2)
	lastSeen := func() time.Time {
		for _, h := range e.Shelves() {
			if h.Shelf == 2 {
				return h.LastHeartbeat
			}
		}
		return time.Time{}
	}
	first := lastSeen()
	require.False(t, first.IsZero())

	time.Sleep(20 * time.Millisecond)
	e.HandleHeartbeat(2)
	require.Eventually(t, func() bool { return lastSeen().After(first) }, time.Second, 5*time.Millisecond)
	assert.True(t, e.IsLinkHealthy())
}

func TestEngineDisconnectForcesOffline(t *testing.T) {
	e, _ := startEngine(t, Config{}, &mockClient{})
	bringOnline(t, e, 1, 2)
	e.HandleDisconnect(errors.New("connection reset"))
	require.Eventually(t, func() bool { return !e.IsLinkHealthy() }, time.Second, 5*time.Millisecond)
	for _, h := range e.Shelves() {
		assert.False(t, h.Online)
	}
}

func TestEngineFailPendingOnDisconnect(t *testing.T) {
	client := &mockClient{}
	e, _ := startEngine(t, Config{FailPendingOnDisconnect: true}, client, WithTimeouts(time.Minute, 0, 0))
	bringOnline(t, e, 1)

	ch := submitAsync(e, model.ItemRef{ID: 1, Quantity: 1}, model.ItemRef{ID: 2, Quantity: 1})
	waitSent(t, client, 1)
	e.HandleDisconnect(errors.New("link down"))

	r := waitResult(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, model.StatusFailed, r.res.Items[0].Status)
	assert.Equal(t, model.StatusDisconnected, r.res.Items[1].Status)
	assert.Len(t, client.Sent(), 1)
}

func TestEngineWritesDispenseLog(t *testing.T) {
	store, err := logging.NewJSONLStore(t.TempDir() + "/dispense.log")
	require.NoError(t, err)
	client := &mockClient{}
	e, _ := startEngine(t, Config{}, client, WithLogStore(store))

	r := waitResult(t, submitAsync(e, model.ItemRef{ID: 9, Quantity: 1}))
	require.NoError(t, r.err)

	recs, err := store.Query(context.Background(), logging.LogQuery{OrderID: r.res.OrderID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.StatusDisconnected, recs[0].Result.Items[0].Status)
}

func TestEngineClosed(t *testing.T) {
	e, err := NewEngine(Config{}, &mockClient{})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	_, err = e.SubmitOrder(context.Background(), []model.ItemRef{{ID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestNewEngineRequiresClient(t *testing.T) {
	_, err := NewEngine(Config{}, nil)
	assert.Error(t, err)
}
