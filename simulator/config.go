package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/vending/core/model"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker            string
	TopicPrefix       string
	Shelves           []model.ShelfID
	HeartbeatInterval time.Duration
	DispenseLatency   time.Duration
	FailRate          float64
	DropRate          float64
	Verbose           bool
}

// Validate checks rates and intervals.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if len(c.Shelves) == 0 {
		return fmt.Errorf("at least one shelf is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	for name, r := range map[string]float64{"fail-rate": c.FailRate, "drop-rate": c.DropRate} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be within [0,1]", name)
		}
	}
	return nil
}

// parseShelves reads a comma separated shelf list such as "1,2,5".
func parseShelves(s string) ([]model.ShelfID, error) {
	var out []model.ShelfID
	seen := map[model.ShelfID]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid shelf %q", part)
		}
		id := model.ShelfID(n)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
