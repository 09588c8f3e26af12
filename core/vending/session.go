package vending

import (
	"time"

	"github.com/kilianp07/vending/core/logger"
	"github.com/kilianp07/vending/core/model"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateSelectingBatch
	stateSelectingItem
	stateAwaitingResponse
	stateCompleted
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSelectingBatch:
		return "selecting_batch"
	case stateSelectingItem:
		return "selecting_item"
	case stateAwaitingResponse:
		return "awaiting_response"
	case stateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// driver is everything a session acts through. The engine implements it.
type driver interface {
	shelfOnline(model.ShelfID) bool
	sendCommand(model.ShelfID, model.ItemRef) error
	emit(model.StatusEvent)
	// armDeadline starts the response timer and returns its token.
	armDeadline() uint64
	cancelDeadline()
	itemDone(orderID string, outcome model.ItemOutcome, latency time.Duration)
}

// session walks the batches of one order. At most one command is
// outstanding: the next item is only selected once the pending one is
// resolved, timed out or skipped.
type session struct {
	id    string
	state sessionState
	queue model.OrderQueue

	shelf   model.ShelfID
	items   []model.ItemRef
	pending *model.ItemRef
	sentAt  time.Time
	token   uint64

	outcomes  []model.ItemOutcome
	startedAt time.Time

	drv driver
	log logger.Logger
}

func newSession(id string, queue model.OrderQueue, drv driver, log logger.Logger) *session {
	return &session{id: id, queue: queue, drv: drv, log: log}
}

// start leaves Idle and runs until the first response wait or completion.
func (s *session) start(now time.Time) {
	if s.state != stateIdle {
		return
	}
	s.startedAt = now
	s.state = stateSelectingBatch
	s.advance()
}

func (s *session) advance() {
	for {
		switch s.state {
		case stateSelectingBatch:
			if len(s.queue) == 0 {
				s.complete()
				return
			}
			b := s.queue[0]
			s.queue = s.queue[1:]
			s.shelf = b.Shelf
			s.items = append([]model.ItemRef(nil), b.Items...)
			s.log.Infof("order %s: starting shelf %d with %d items", s.id, s.shelf, len(s.items))
			s.state = stateSelectingItem
		case stateSelectingItem:
			if len(s.items) == 0 {
				s.log.Infof("order %s: finished shelf %d", s.id, s.shelf)
				s.state = stateSelectingBatch
				continue
			}
			it := s.items[0]
			s.items = s.items[1:]
			s.dispatch(it)
			if s.state == stateAwaitingResponse {
				return
			}
		default:
			return
		}
	}
}

func (s *session) dispatch(it model.ItemRef) {
	if !s.drv.shelfOnline(s.shelf) {
		s.log.Warnf("order %s: shelf %d disconnected, skipping item %d", s.id, s.shelf, it.ID)
		s.finish(it, model.StatusDisconnected, 0)
		return
	}
	if err := s.drv.sendCommand(s.shelf, it); err != nil {
		s.log.Errorf("order %s: publish to shelf %d failed: %v", s.id, s.shelf, err)
		s.finish(it, model.StatusFailed, 0)
		return
	}
	s.log.Infof("order %s: sent %s to shelf %d", s.id, it.Command(), s.shelf)
	s.drv.emit(model.ItemEvent(s.id, s.shelf, it.ID, model.StatusDispensing))
	s.pending = &it
	s.sentAt = time.Now()
	s.token = s.drv.armDeadline()
	s.state = stateAwaitingResponse
}

func (s *session) finish(it model.ItemRef, st model.ItemStatus, latency time.Duration) {
	out := model.ItemOutcome{ItemID: it.ID, Shelf: s.shelf, Quantity: it.Quantity, Status: st}
	s.outcomes = append(s.outcomes, out)
	s.drv.emit(model.ItemEvent(s.id, s.shelf, it.ID, st))
	s.drv.itemDone(s.id, out, latency)
}

// resolve settles the pending item and moves on to the next one.
func (s *session) resolve(st model.ItemStatus) {
	it := *s.pending
	latency := time.Since(s.sentAt)
	s.pending = nil
	s.state = stateSelectingItem
	s.finish(it, st, latency)
	s.advance()
}

// onResponse handles a shelf response. It returns false when the session is
// not waiting on that shelf, in which case nothing changes.
func (s *session) onResponse(shelf model.ShelfID, payload string) bool {
	if s.state != stateAwaitingResponse || shelf != s.shelf {
		return false
	}
	s.drv.cancelDeadline()
	st := model.StatusFailed
	if payload == coremqtt.ResponseSuccess {
		st = model.StatusDispensed
	}
	s.log.Infof("order %s: response from shelf %d: %s", s.id, shelf, payload)
	s.resolve(st)
	return true
}

// onTimeout fails the pending item if token matches its deadline.
func (s *session) onTimeout(token uint64) bool {
	if s.state != stateAwaitingResponse || token != s.token {
		return false
	}
	s.log.Warnf("order %s: timeout waiting for response from shelf %d", s.id, s.shelf)
	s.resolve(model.StatusFailed)
	return true
}

// failPending fails the pending item immediately.
func (s *session) failPending() bool {
	if s.state != stateAwaitingResponse {
		return false
	}
	s.drv.cancelDeadline()
	s.log.Warnf("order %s: failing item %d on shelf %d after link loss", s.id, s.pending.ID, s.shelf)
	s.resolve(model.StatusFailed)
	return true
}

func (s *session) complete() {
	s.state = stateCompleted
	s.log.Infof("order %s: all shelves processed", s.id)
	s.drv.emit(model.CompleteEvent(s.id, true))
}

func (s *session) done() bool { return s.state == stateCompleted }

func (s *session) result(now time.Time) model.OrderResult {
	return model.OrderResult{
		OrderID:     s.id,
		Success:     s.done(),
		Items:       append([]model.ItemOutcome(nil), s.outcomes...),
		StartedAt:   s.startedAt,
		CompletedAt: now,
	}
}
