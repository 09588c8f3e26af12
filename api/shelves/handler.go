// Package shelves exposes the machine link and per-shelf health.
package shelves

import (
	"net/http"

	"github.com/kilianp07/vending/api/respond"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/infra/metrics"
)

// HealthSource reports shelf liveness.
type HealthSource interface {
	IsLinkHealthy() bool
	Shelves() []model.ShelfHealth
}

// StatsSource reports response latency statistics per shelf.
type StatsSource interface {
	Stats() []metrics.LatencyStats
}

// NewLinkHandler serves GET /api/esp32-status.
func NewLinkHandler(h HealthSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]bool{"connected": h.IsLinkHealthy()})
	})
}

type shelvesResponse struct {
	Connected bool                   `json:"connected"`
	Shelves   []model.ShelfHealth    `json:"shelves"`
	Stats     []metrics.LatencyStats `json:"stats"`
}

// NewStatusHandler serves GET /api/shelves. stats may be nil.
func NewStatusHandler(h HealthSource, stats StatsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := shelvesResponse{
			Connected: h.IsLinkHealthy(),
			Shelves:   h.Shelves(),
			Stats:     []metrics.LatencyStats{},
		}
		if stats != nil {
			if s := stats.Stats(); s != nil {
				out.Stats = s
			}
		}
		respond.JSON(w, http.StatusOK, out)
	})
}
