package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/infra/logger"
	"github.com/kilianp07/vending/internal/eventbus"
)

// StartEventCollector subscribes to the status bus and forwards every event
// to rec. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[model.StatusEvent], rec coremetrics.StatusRecorder) {
	if bus == nil || rec == nil {
		return
	}
	log := logger.New("status-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordStatus(ev); err != nil {
					log.Warnf("record status: %v", err)
				}
			}
		}
	}()
}
