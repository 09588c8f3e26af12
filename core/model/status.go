package model

import "time"

// ItemStatus is the dispense state reported for a single item.
type ItemStatus string

const (
	StatusDispensing   ItemStatus = "Dispensing"
	StatusDispensed    ItemStatus = "Dispensed"
	StatusFailed       ItemStatus = "Failed"
	StatusDisconnected ItemStatus = "Disconnected"
)

// Terminal reports whether no further event follows for the item.
func (s ItemStatus) Terminal() bool {
	return s == StatusDispensed || s == StatusFailed || s == StatusDisconnected
}

// EventKind distinguishes item updates from order completion.
type EventKind string

const (
	EventOrderStatus   EventKind = "orderStatus"
	EventOrderComplete EventKind = "orderComplete"
)

// StatusEvent is pushed to the status broadcaster. Its JSON form is what
// websocket observers receive.
type StatusEvent struct {
	Kind    EventKind  `json:"type"`
	ItemID  int        `json:"id,omitempty"`
	Status  ItemStatus `json:"status,omitempty"`
	Success *bool      `json:"success,omitempty"`
	OrderID string     `json:"-"`
	Shelf   ShelfID    `json:"-"`
	Time    time.Time  `json:"-"`
}

// ItemEvent builds an orderStatus event.
func ItemEvent(orderID string, shelf ShelfID, itemID int, st ItemStatus) StatusEvent {
	return StatusEvent{Kind: EventOrderStatus, OrderID: orderID, Shelf: shelf, ItemID: itemID, Status: st, Time: time.Now()}
}

// CompleteEvent builds an orderComplete event.
func CompleteEvent(orderID string, success bool) StatusEvent {
	return StatusEvent{Kind: EventOrderComplete, OrderID: orderID, Success: &success, Time: time.Now()}
}
