package logging

import (
	"context"
	"time"

	"github.com/kilianp07/vending/core/model"
)

// LogRecord captures one completed order and its per-item outcomes.
type LogRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	OrderID   string            `json:"order_id"`
	Result    model.OrderResult `json:"result"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	OrderID string
	ItemID  int
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// matches applies the filters shared by every store.
func (q LogQuery) matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrderID != "" && r.OrderID != q.OrderID {
		return false
	}
	if q.ItemID != 0 {
		for _, it := range r.Result.Items {
			if it.ItemID == q.ItemID {
				return true
			}
		}
		return false
	}
	return true
}
