package vending

import (
	"fmt"
	"time"

	"github.com/kilianp07/vending/core/model"
)

// ShelfRange maps an inclusive item id range to a shelf controller.
type ShelfRange struct {
	Shelf model.ShelfID `json:"shelf"`
	Low   int           `json:"low"`
	High  int           `json:"high"`
}

// Batch visiting orders.
const (
	OrderDescending = "desc"
	OrderAscending  = "asc"
)

// Config defines dispense engine settings.
type Config struct {
	CommandTimeoutSeconds   int          `json:"command_timeout_seconds"`
	HeartbeatTimeoutSeconds int          `json:"heartbeat_timeout_seconds"`
	SweepIntervalSeconds    int          `json:"sweep_interval_seconds"`
	BatchOrder              string       `json:"batch_order"`
	Shelves                 []ShelfRange `json:"shelves"`
	// MaxPendingOrders bounds the admission queue, active order included.
	MaxPendingOrders int `json:"max_pending_orders"`
	// FailPendingOnDisconnect fails the in-flight item as soon as the broker
	// link drops instead of waiting for its deadline.
	FailPendingOnDisconnect bool `json:"fail_pending_on_disconnect"`
}

// DefaultShelves is the routing table of the five shelf machine.
func DefaultShelves() []ShelfRange {
	return []ShelfRange{
		{Shelf: 1, Low: 1, High: 4},
		{Shelf: 2, Low: 5, High: 8},
		{Shelf: 3, Low: 9, High: 16},
		{Shelf: 4, Low: 17, High: 24},
		{Shelf: 5, Low: 25, High: 32},
	}
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.CommandTimeoutSeconds <= 0 {
		c.CommandTimeoutSeconds = 15
	}
	if c.HeartbeatTimeoutSeconds <= 0 {
		c.HeartbeatTimeoutSeconds = 30
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = 5
	}
	if c.BatchOrder == "" {
		c.BatchOrder = OrderDescending
	}
	if len(c.Shelves) == 0 {
		c.Shelves = DefaultShelves()
	}
	if c.MaxPendingOrders <= 0 {
		c.MaxPendingOrders = 16
	}
}

// Validate checks the routing table and batch order.
func (c Config) Validate() error {
	if c.BatchOrder != OrderDescending && c.BatchOrder != OrderAscending {
		return fmt.Errorf("vending: unknown batch_order %q", c.BatchOrder)
	}
	_, err := NewRoutingTable(c.Shelves, c.BatchOrder)
	return err
}

func (c Config) commandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

func (c Config) heartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

func (c Config) sweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
