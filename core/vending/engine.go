package vending

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/vending/core/dispense/logging"
	"github.com/kilianp07/vending/core/logger"
	"github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/core/monitoring"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

// Broadcaster fans status events out to UI subscribers.
type Broadcaster interface {
	Publish(model.StatusEvent)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(model.StatusEvent) {}

// Option customizes an Engine.
type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) {
		if b != nil {
			e.bus = b
		}
	}
}

func WithMetricsSink(s metrics.MetricsSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogStore persists every completed order.
func WithLogStore(s logging.LogStore) Option {
	return func(e *Engine) { e.logs = s }
}

// WithTimeouts overrides the durations derived from Config. Zero values keep
// the configured ones.
func WithTimeouts(command, heartbeat, sweep time.Duration) Option {
	return func(e *Engine) {
		if command > 0 {
			e.commandTimeout = command
		}
		if heartbeat > 0 {
			e.heartbeatTimeout = heartbeat
		}
		if sweep > 0 {
			e.sweepInterval = sweep
		}
	}
}

type event interface{}

type heartbeatEvent struct {
	shelf model.ShelfID
	at    time.Time
}

type responseEvent struct {
	shelf   model.ShelfID
	payload string
}

type timeoutEvent struct{ token uint64 }

type submitEvent struct{ order *pendingOrder }

type disconnectEvent struct{ err error }

type pendingOrder struct {
	id    string
	queue model.OrderQueue
	done  chan model.OrderResult
}

// Engine serializes orders over the shelves. A single goroutine started by
// Run owns the health monitor, the admission queue and the active session;
// every other entry point posts to its mailbox.
type Engine struct {
	cfg    Config
	routes *RoutingTable
	client coremqtt.Client
	log    logger.Logger
	bus    Broadcaster
	sink   metrics.MetricsSink
	logs   logging.LogStore

	commandTimeout   time.Duration
	heartbeatTimeout time.Duration
	sweepInterval    time.Duration

	events   chan event
	stop     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
	started  atomic.Bool
	inflight atomic.Int32

	mu        sync.RWMutex
	snapshot  []model.ShelfHealth
	anyOnline bool

	// loop owned
	health  *HealthMonitor
	pending []*pendingOrder
	active  *session
	current *pendingOrder
	timer   *time.Timer
	seq     uint64
}

// NewEngine validates cfg and builds an engine publishing through client.
func NewEngine(cfg Config, client coremqtt.Client, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("vending: mqtt client is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	routes, err := NewRoutingTable(cfg.Shelves, cfg.BatchOrder)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:              cfg,
		routes:           routes,
		client:           client,
		log:              logger.NopLogger{},
		bus:              nopBroadcaster{},
		sink:             metrics.NopSink{},
		commandTimeout:   cfg.commandTimeout(),
		heartbeatTimeout: cfg.heartbeatTimeout(),
		sweepInterval:    cfg.sweepInterval(),
		events:           make(chan event, 64),
		stop:             make(chan struct{}),
		stopped:          make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.health = NewHealthMonitor(routes.Shelves(), e.heartbeatTimeout)
	e.snapshot = e.health.Snapshot()
	return e, nil
}

// Run processes events until ctx is done or Close is called.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("vending: engine already running")
	}
	defer close(e.stopped)
	defer func() {
		if r := recover(); r != nil {
			monitoring.CapturePanic(r, map[string]string{"module": "vending"})
			monitoring.Flush(2 * time.Second)
			panic(r)
		}
	}()
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	defer e.cancelDeadline()
	e.log.Infof("dispense engine started with %d shelves", len(e.routes.Shelves()))
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-e.stop:
			return nil
		case ev := <-e.events:
			e.handle(ev)
		case now := <-ticker.C:
			e.sweep(now)
		}
	}
}

// Close stops the loop and waits for it to exit if it was running.
func (e *Engine) Close() error {
	e.shutdown()
	if e.started.Load() {
		<-e.stopped
	}
	return nil
}

func (e *Engine) shutdown() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// SubmitOrder partitions items and waits for the order to complete. When ctx
// ends first the order keeps running and ctx.Err() is returned.
func (e *Engine) SubmitOrder(ctx context.Context, items []model.ItemRef) (model.OrderResult, error) {
	select {
	case <-e.stop:
		return model.OrderResult{}, ErrEngineClosed
	default:
	}
	queue, err := e.routes.Partition(items)
	if err != nil {
		e.log.Warnf("rejecting order of %d items: %v", len(items), err)
		return model.OrderResult{}, err
	}
	if dropped := len(items) - queue.Len(); dropped > 0 {
		e.log.Warnf("dropping %d unmapped items from order", dropped)
	}
	if n := e.inflight.Add(1); int(n) > e.cfg.MaxPendingOrders {
		e.inflight.Add(-1)
		return model.OrderResult{}, ErrQueueFull
	}
	ord := &pendingOrder{id: uuid.NewString(), queue: queue, done: make(chan model.OrderResult, 1)}
	select {
	case e.events <- submitEvent{order: ord}:
	case <-e.stop:
		e.inflight.Add(-1)
		return model.OrderResult{}, ErrEngineClosed
	case <-ctx.Done():
		e.inflight.Add(-1)
		return model.OrderResult{}, ctx.Err()
	}
	select {
	case res := <-ord.done:
		return res, nil
	case <-ctx.Done():
		return model.OrderResult{OrderID: ord.id}, ctx.Err()
	case <-e.stop:
		return model.OrderResult{OrderID: ord.id}, ErrEngineClosed
	}
}

// IsLinkHealthy reports whether at least one shelf is online.
func (e *Engine) IsLinkHealthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.anyOnline
}

// Shelves returns the latest health snapshot.
func (e *Engine) Shelves() []model.ShelfHealth {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.ShelfHealth(nil), e.snapshot...)
}

// HandleHeartbeat implements coremqtt.InboundHandler.
func (e *Engine) HandleHeartbeat(shelf model.ShelfID) {
	e.post(heartbeatEvent{shelf: shelf, at: time.Now()})
}

// HandleResponse implements coremqtt.InboundHandler.
func (e *Engine) HandleResponse(shelf model.ShelfID, payload string) {
	e.post(responseEvent{shelf: shelf, payload: payload})
}

// HandleDisconnect implements coremqtt.InboundHandler.
func (e *Engine) HandleDisconnect(err error) {
	e.post(disconnectEvent{err: err})
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	case <-e.stop:
	}
}

func (e *Engine) handle(ev event) {
	switch ev := ev.(type) {
	case heartbeatEvent:
		wasOnline := e.health.IsOnline(ev.shelf)
		if !e.health.RecordHeartbeat(ev.shelf, ev.at) {
			e.log.Debugf("heartbeat from unknown shelf %d", ev.shelf)
			return
		}
		if !wasOnline {
			e.log.Infof("shelf %d online", ev.shelf)
			e.recordHealth(ev.shelf, true, ev.at)
			e.publishHealth()
		} else {
			e.touchHealth(ev.shelf, ev.at)
		}
	case responseEvent:
		if e.active == nil || !e.active.onResponse(ev.shelf, ev.payload) {
			responseMismatch.Inc()
			e.log.Warnf("ignoring response %q from shelf %d: no command pending there", ev.payload, ev.shelf)
			return
		}
	case timeoutEvent:
		if e.active == nil || !e.active.onTimeout(ev.token) {
			e.log.Debugf("stale deadline %d ignored", ev.token)
			return
		}
	case submitEvent:
		e.pending = append(e.pending, ev.order)
		e.log.Infof("order %s queued with %d shelves", ev.order.id, len(ev.order.queue))
	case disconnectEvent:
		e.log.Warnf("broker link lost: %v", ev.err)
		now := time.Now()
		for _, h := range e.health.Snapshot() {
			if h.Online {
				e.recordHealth(h.Shelf, false, now)
			}
		}
		e.health.Disconnect()
		e.publishHealth()
		if e.cfg.FailPendingOnDisconnect && e.active != nil {
			e.active.failPending()
		}
	}
	e.afterStep()
}

// afterStep retires a completed session and starts queued orders until one
// is waiting on a shelf or the queue is empty.
func (e *Engine) afterStep() {
	for {
		if e.active != nil {
			if !e.active.done() {
				break
			}
			e.finishOrder()
		}
		if len(e.pending) == 0 {
			break
		}
		ord := e.pending[0]
		e.pending = e.pending[1:]
		e.current = ord
		e.active = newSession(ord.id, ord.queue, e, e.log)
		e.active.start(time.Now())
	}
	queueDepth.Set(float64(len(e.pending)))
}

func (e *Engine) finishOrder() {
	res := e.active.result(time.Now())
	ord := e.current
	e.active, e.current = nil, nil
	e.inflight.Add(-1)

	outcome := "partial"
	if res.AllDispensed() {
		outcome = "all_dispensed"
	}
	ordersTotal.WithLabelValues(outcome).Inc()
	e.log.Infof("order %s completed: %d/%d dispensed in %s", res.OrderID,
		res.Count(model.StatusDispensed), len(res.Items), res.CompletedAt.Sub(res.StartedAt))

	if rec, ok := e.sink.(metrics.OrderRecorder); ok {
		if err := rec.RecordOrder(metrics.NewOrderEvent(res)); err != nil {
			e.log.Warnf("metrics sink: %v", err)
		}
	}
	if e.logs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := e.logs.Append(ctx, logging.LogRecord{Timestamp: res.CompletedAt, OrderID: res.OrderID, Result: res})
		cancel()
		if err != nil {
			e.log.Errorf("dispense log append failed: %v", err)
			monitoring.CaptureException(err, map[string]string{"module": "vending", "order_id": res.OrderID})
		}
	}
	ord.done <- res
}

func (e *Engine) sweep(now time.Time) {
	dropped := e.health.Sweep(now)
	for _, s := range dropped {
		e.log.Warnf("shelf %d missed heartbeats, marking offline", s)
		e.recordHealth(s, false, now)
	}
	if len(dropped) > 0 {
		e.publishHealth()
	}
}

func (e *Engine) publishHealth() {
	snap := e.health.Snapshot()
	online := 0
	for _, h := range snap {
		if h.Online {
			online++
		}
	}
	shelvesOnline.Set(float64(online))
	e.mu.Lock()
	e.snapshot = snap
	e.anyOnline = online > 0
	e.mu.Unlock()
}

// touchHealth stamps the heartbeat time of one shelf in the published snapshot.
func (e *Engine) touchHealth(shelf model.ShelfID, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.snapshot {
		if e.snapshot[i].Shelf == shelf {
			e.snapshot[i].LastHeartbeat = at
			return
		}
	}
}

func (e *Engine) recordHealth(shelf model.ShelfID, online bool, at time.Time) {
	rec, ok := e.sink.(metrics.ShelfHealthRecorder)
	if !ok {
		return
	}
	if err := rec.RecordShelfHealth(metrics.ShelfHealthEvent{Shelf: shelf, Online: online, Time: at}); err != nil {
		e.log.Warnf("metrics sink: %v", err)
	}
}

// driver implementation, called from the loop only.

func (e *Engine) shelfOnline(s model.ShelfID) bool { return e.health.IsOnline(s) }

func (e *Engine) sendCommand(s model.ShelfID, it model.ItemRef) error {
	if err := e.client.SendCommand(s, it); err != nil {
		publishFailures.Inc()
		if errors.Is(err, coremqtt.ErrNotConnected) {
			return err
		}
		return fmt.Errorf("send %s to shelf %d: %w", it.Command(), s, err)
	}
	return nil
}

func (e *Engine) emit(ev model.StatusEvent) { e.bus.Publish(ev) }

func (e *Engine) armDeadline() uint64 {
	e.cancelDeadline()
	e.seq++
	token := e.seq
	e.timer = time.AfterFunc(e.commandTimeout, func() {
		e.post(timeoutEvent{token: token})
	})
	return token
}

func (e *Engine) cancelDeadline() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) itemDone(orderID string, out model.ItemOutcome, latency time.Duration) {
	shelf := strconv.Itoa(int(out.Shelf))
	itemsTotal.WithLabelValues(shelf, string(out.Status)).Inc()
	if latency > 0 {
		dispenseLatency.WithLabelValues(shelf).Observe(latency.Seconds())
	}
	ev := metrics.DispenseEvent{
		OrderID:  orderID,
		Shelf:    out.Shelf,
		ItemID:   out.ItemID,
		Quantity: out.Quantity,
		Status:   out.Status,
		Latency:  latency,
		Time:     time.Now(),
	}
	if err := e.sink.RecordDispense(ev); err != nil {
		e.log.Warnf("metrics sink: %v", err)
	}
}
