package vending

import (
	"time"

	"github.com/kilianp07/vending/core/model"
)

// HealthMonitor tracks shelf liveness from heartbeats. It is not safe for
// concurrent use; the engine loop owns it.
type HealthMonitor struct {
	order      []model.ShelfID
	shelves    map[model.ShelfID]*model.ShelfHealth
	staleAfter time.Duration
}

// NewHealthMonitor creates a monitor with every shelf offline.
func NewHealthMonitor(shelves []model.ShelfID, staleAfter time.Duration) *HealthMonitor {
	h := &HealthMonitor{
		order:      append([]model.ShelfID(nil), shelves...),
		shelves:    make(map[model.ShelfID]*model.ShelfHealth, len(shelves)),
		staleAfter: staleAfter,
	}
	for _, s := range shelves {
		h.shelves[s] = &model.ShelfHealth{Shelf: s}
	}
	return h
}

// RecordHeartbeat marks the shelf online. Unknown shelves are ignored and
// reported with false.
func (h *HealthMonitor) RecordHeartbeat(shelf model.ShelfID, now time.Time) bool {
	st, ok := h.shelves[shelf]
	if !ok {
		return false
	}
	st.Online = true
	st.LastHeartbeat = now
	return true
}

// Sweep marks offline every shelf whose last heartbeat is older than the
// staleness window or was never seen. It returns the shelves that went
// offline during this call.
func (h *HealthMonitor) Sweep(now time.Time) []model.ShelfID {
	var dropped []model.ShelfID
	for _, s := range h.order {
		st := h.shelves[s]
		if st.LastHeartbeat.IsZero() || now.Sub(st.LastHeartbeat) > h.staleAfter {
			if st.Online {
				dropped = append(dropped, s)
			}
			st.Online = false
		}
	}
	return dropped
}

// Disconnect forces every shelf offline.
func (h *HealthMonitor) Disconnect() {
	for _, st := range h.shelves {
		st.Online = false
	}
}

// IsOnline reports the state of one shelf.
func (h *HealthMonitor) IsOnline(shelf model.ShelfID) bool {
	st, ok := h.shelves[shelf]
	return ok && st.Online
}

// IsAnyOnline reports whether at least one shelf is online.
func (h *HealthMonitor) IsAnyOnline() bool {
	for _, st := range h.shelves {
		if st.Online {
			return true
		}
	}
	return false
}

// Snapshot copies the state of every shelf in configuration order.
func (h *HealthMonitor) Snapshot() []model.ShelfHealth {
	out := make([]model.ShelfHealth, 0, len(h.order))
	for _, s := range h.order {
		out = append(out, *h.shelves[s])
	}
	return out
}
