package model

import (
	"fmt"
	"time"
)

// ItemRef is an item identifier paired with a requested quantity.
type ItemRef struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
}

// Command renders the payload sent to a shelf controller.
func (i ItemRef) Command() string {
	return fmt.Sprintf("%d,%d", i.ID, i.Quantity)
}

// ShelfBatch is the ordered set of items routed to one shelf for one order.
type ShelfBatch struct {
	Shelf ShelfID   `json:"shelf"`
	Items []ItemRef `json:"items"`
}

// OrderQueue is the ordered list of batches for one order.
type OrderQueue []ShelfBatch

// Len returns the number of items across all batches.
func (q OrderQueue) Len() int {
	n := 0
	for _, b := range q {
		n += len(b.Items)
	}
	return n
}

// ItemOutcome records the terminal status of one dispensed item.
type ItemOutcome struct {
	ItemID   int        `json:"id"`
	Shelf    ShelfID    `json:"shelf"`
	Quantity int        `json:"quantity"`
	Status   ItemStatus `json:"status"`
}

// OrderResult is returned to the submitter once every batch has been drained.
// Success is true whenever the order ran to completion; per-item outcomes
// carry the individual Dispensed/Failed/Disconnected results.
type OrderResult struct {
	OrderID     string        `json:"order_id"`
	Success     bool          `json:"success"`
	Items       []ItemOutcome `json:"items"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// AllDispensed reports whether every item reached the Dispensed status.
func (r OrderResult) AllDispensed() bool {
	if len(r.Items) == 0 {
		return false
	}
	for _, it := range r.Items {
		if it.Status != StatusDispensed {
			return false
		}
	}
	return true
}

// Count returns how many items ended with the given status.
func (r OrderResult) Count(st ItemStatus) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == st {
			n++
		}
	}
	return n
}
