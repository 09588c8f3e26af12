package metrics

import (
	"time"

	"github.com/kilianp07/vending/core/model"
)

// DispenseEvent is the terminal outcome of one item.
type DispenseEvent struct {
	OrderID  string
	Shelf    model.ShelfID
	ItemID   int
	Quantity int
	Status   model.ItemStatus
	// Latency is zero when no command was published.
	Latency time.Duration
	Time    time.Time
}

// MetricsSink records dispense outcomes for observability purposes.
type MetricsSink interface {
	RecordDispense(ev DispenseEvent) error
}

// OrderEvent summarizes a completed order.
type OrderEvent struct {
	OrderID      string
	Items        int
	Dispensed    int
	Failed       int
	Disconnected int
	Duration     time.Duration
	Time         time.Time
}

// OrderRecorder records completed orders.
type OrderRecorder interface {
	RecordOrder(ev OrderEvent) error
}

// ShelfHealthEvent is emitted when a shelf changes liveness.
type ShelfHealthEvent struct {
	Shelf  model.ShelfID
	Online bool
	Time   time.Time
}

// ShelfHealthRecorder records shelf liveness transitions.
type ShelfHealthRecorder interface {
	RecordShelfHealth(ev ShelfHealthEvent) error
}

// NewOrderEvent summarizes an OrderResult.
func NewOrderEvent(res model.OrderResult) OrderEvent {
	return OrderEvent{
		OrderID:      res.OrderID,
		Items:        len(res.Items),
		Dispensed:    res.Count(model.StatusDispensed),
		Failed:       res.Count(model.StatusFailed),
		Disconnected: res.Count(model.StatusDisconnected),
		Duration:     res.CompletedAt.Sub(res.StartedAt),
		Time:         res.CompletedAt,
	}
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispense(DispenseEvent) error       { return nil }
func (NopSink) RecordOrder(OrderEvent) error             { return nil }
func (NopSink) RecordShelfHealth(ShelfHealthEvent) error { return nil }

// StatusRecorder records the status events pushed to UI subscribers.
type StatusRecorder interface {
	RecordStatus(ev model.StatusEvent) error
}
