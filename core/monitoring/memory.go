package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Capture is one event recorded by MemoryMonitor.
type Capture struct {
	Err  error
	Tags map[string]string
}

// MemoryMonitor keeps captures in memory. It backs tests and the
// monitoring-disabled mode of the CLI.
type MemoryMonitor struct {
	mu       sync.Mutex
	captures []Capture
}

func (m *MemoryMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, Capture{Err: err, Tags: tags})
}

func (m *MemoryMonitor) CapturePanic(v any, tags map[string]string) {
	m.CaptureException(fmt.Errorf("panic: %v", v), tags)
}

func (m *MemoryMonitor) Flush(time.Duration) {}

// Captures returns a copy of the recorded events.
func (m *MemoryMonitor) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Capture(nil), m.captures...)
}
