package vending

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/infra/logger"
)

type fakeDriver struct {
	online    map[model.ShelfID]bool
	sendErr   error
	sent      []string
	events    []model.StatusEvent
	outcomes  []model.ItemOutcome
	seq       uint64
	cancelled int
}

func (d *fakeDriver) shelfOnline(s model.ShelfID) bool { return d.online[s] }

func (d *fakeDriver) sendCommand(s model.ShelfID, it model.ItemRef) error {
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, s.String()+":"+it.Command())
	return nil
}

func (d *fakeDriver) emit(ev model.StatusEvent) { d.events = append(d.events, ev) }

func (d *fakeDriver) armDeadline() uint64 {
	d.seq++
	return d.seq
}

func (d *fakeDriver) cancelDeadline() { d.cancelled++ }

func (d *fakeDriver) itemDone(_ string, out model.ItemOutcome, _ time.Duration) {
	d.outcomes = append(d.outcomes, out)
}

func (d *fakeDriver) statuses() []string {
	var out []string
	for _, ev := range d.events {
		if ev.Kind == model.EventOrderComplete {
			out = append(out, "complete")
			continue
		}
		out = append(out, string(ev.Status))
	}
	return out
}

func scenarioQueue() model.OrderQueue {
	return model.OrderQueue{
		{Shelf: 5, Items: []model.ItemRef{{ID: 30, Quantity: 2}}},
		{Shelf: 1, Items: []model.ItemRef{{ID: 1, Quantity: 1}, {ID: 2, Quantity: 1}}},
	}
}

func TestSessionSkipsOfflineShelfAndWaits(t *testing.T) {
	d := &fakeDriver{online: map[model.ShelfID]bool{1: true}}
	s := newSession("o1", scenarioQueue(), d, logger.NopLogger{})
	s.start(time.Now())

	assert.Equal(t, stateAwaitingResponse, s.state)
	assert.Equal(t, []string{"1:1,1"}, d.sent)
	assert.Equal(t, []string{"Disconnected", "Dispensing"}, d.statuses())
	assert.Equal(t, 30, d.events[0].ItemID)

	require.True(t, s.onResponse(1, "success"))
	assert.Equal(t, []string{"1:1,1", "1:2,1"}, d.sent)

	require.True(t, s.onResponse(1, "jammed"))
	assert.True(t, s.done())
	assert.Equal(t, []string{"Disconnected", "Dispensing", "Dispensed", "Dispensing", "Failed", "complete"}, d.statuses())

	res := s.result(time.Now())
	assert.True(t, res.Success)
	assert.False(t, res.AllDispensed())
	require.Len(t, res.Items, 3)
	assert.Equal(t, model.StatusDisconnected, res.Items[0].Status)
	assert.Equal(t, model.StatusDispensed, res.Items[1].Status)
	assert.Equal(t, model.StatusFailed, res.Items[2].Status)
	assert.Len(t, d.outcomes, 3)
}

func TestSessionIgnoresOtherShelfResponse(t *testing.T) {
	d := &fakeDriver{online: map[model.ShelfID]bool{1: true, 2: true}}
	q := model.OrderQueue{{Shelf: 1, Items: []model.ItemRef{{ID: 1, Quantity: 1}}}}
	s := newSession("o1", q, d, logger.NopLogger{})
	s.start(time.Now())

	assert.False(t, s.onResponse(2, "success"))
	assert.Equal(t, stateAwaitingResponse, s.state)
	assert.Zero(t, d.cancelled)

	assert.True(t, s.onTimeout(1))
	assert.True(t, s.done())
	assert.Equal(t, []string{"Dispensing", "Failed", "complete"}, d.statuses())
}

func TestSessionStaleTimeoutIgnored(t *testing.T) {
	d := &fakeDriver{online: map[model.ShelfID]bool{1: true}}
	q := model.OrderQueue{{Shelf: 1, Items: []model.ItemRef{{ID: 1, Quantity: 1}, {ID: 2, Quantity: 1}}}}
	s := newSession("o1", q, d, logger.NopLogger{})
	s.start(time.Now())

	require.True(t, s.onResponse(1, "success"))
	// deadline of the first item fires late
	assert.False(t, s.onTimeout(1))
	assert.Equal(t, stateAwaitingResponse, s.state)
	assert.True(t, s.onTimeout(2))
	assert.True(t, s.done())
}

func TestSessionPublishErrorFailsItem(t *testing.T) {
	d := &fakeDriver{online: map[model.ShelfID]bool{1: true}, sendErr: errors.New("broker down")}
	q := model.OrderQueue{{Shelf: 1, Items: []model.ItemRef{{ID: 1, Quantity: 1}, {ID: 2, Quantity: 3}}}}
	s := newSession("o1", q, d, logger.NopLogger{})
	s.start(time.Now())

	assert.True(t, s.done())
	assert.Empty(t, d.sent)
	assert.Equal(t, []string{"Failed", "Failed", "complete"}, d.statuses())
}

func TestSessionFailPending(t *testing.T) {
	d := &fakeDriver{online: map[model.ShelfID]bool{1: true}}
	q := model.OrderQueue{{Shelf: 1, Items: []model.ItemRef{{ID: 1, Quantity: 1}}}}
	s := newSession("o1", q, d, logger.NopLogger{})
	assert.False(t, s.failPending())
	s.start(time.Now())
	assert.True(t, s.failPending())
	assert.True(t, s.done())
	assert.Equal(t, 1, d.cancelled)
}
