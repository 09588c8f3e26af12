package metrics

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
)

// LatencyStats summarizes command-to-response latency for one shelf.
type LatencyStats struct {
	Shelf        model.ShelfID `json:"shelf"`
	Samples      int           `json:"samples"`
	MeanMS       float64       `json:"mean_ms"`
	StdDevMS     float64       `json:"stddev_ms"`
	P95MS        float64       `json:"p95_ms"`
	Dispensed    int           `json:"dispensed"`
	Failed       int           `json:"failed"`
	Disconnected int           `json:"disconnected"`
}

type shelfWindow struct {
	latencies []float64
	next      int
	counts    map[model.ItemStatus]int
}

// StatsSink keeps a rolling window of response latencies per shelf.
type StatsSink struct {
	mu     sync.Mutex
	window int
	shelf  map[model.ShelfID]*shelfWindow
}

// NewStatsSink keeps at most window samples per shelf.
func NewStatsSink(window int) *StatsSink {
	if window <= 0 {
		window = 256
	}
	return &StatsSink{window: window, shelf: make(map[model.ShelfID]*shelfWindow)}
}

// RecordDispense adds the latency of answered commands to the shelf window.
func (s *StatsSink) RecordDispense(ev coremetrics.DispenseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.shelf[ev.Shelf]
	if !ok {
		w = &shelfWindow{counts: make(map[model.ItemStatus]int)}
		s.shelf[ev.Shelf] = w
	}
	w.counts[ev.Status]++
	if ev.Latency <= 0 {
		return nil
	}
	ms := float64(ev.Latency.Microseconds()) / 1000
	if len(w.latencies) < s.window {
		w.latencies = append(w.latencies, ms)
		return nil
	}
	w.latencies[w.next] = ms
	w.next = (w.next + 1) % s.window
	return nil
}

// Stats returns per-shelf statistics ordered by shelf id.
func (s *StatsSink) Stats() []LatencyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LatencyStats, 0, len(s.shelf))
	for id, w := range s.shelf {
		ls := LatencyStats{
			Shelf:        id,
			Samples:      len(w.latencies),
			Dispensed:    w.counts[model.StatusDispensed],
			Failed:       w.counts[model.StatusFailed],
			Disconnected: w.counts[model.StatusDisconnected],
		}
		if len(w.latencies) > 0 {
			sorted := append([]float64(nil), w.latencies...)
			sort.Float64s(sorted)
			ls.MeanMS, ls.StdDevMS = stat.MeanStdDev(sorted, nil)
			ls.P95MS = stat.Quantile(0.95, stat.Empirical, sorted, nil)
			if len(sorted) == 1 {
				ls.StdDevMS = 0
			}
		}
		out = append(out, ls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shelf < out[j].Shelf })
	return out
}
