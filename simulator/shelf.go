package main

import (
	"context"
	"log"
	"time"

	"github.com/kilianp07/vending/core/model"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

// SimulatedShelf publishes heartbeats and answers dispense commands one at a
// time, like the shelf controller firmware.
type SimulatedShelf struct {
	ID       model.ShelfID
	Topics   coremqtt.Topics
	Strategy ReplyStrategy
	Interval time.Duration

	client broker
	cmdCh  chan model.ItemRef
}

// NewSimulatedShelf creates a shelf publishing through client.
func NewSimulatedShelf(id model.ShelfID, topics coremqtt.Topics, strat ReplyStrategy, interval time.Duration, client broker) *SimulatedShelf {
	return &SimulatedShelf{
		ID:       id,
		Topics:   topics,
		Strategy: strat,
		Interval: interval,
		client:   client,
		cmdCh:    make(chan model.ItemRef, 50),
	}
}

// Run subscribes to the shelf command topic and serves until ctx is done.
func (s *SimulatedShelf) Run(ctx context.Context) error {
	if err := s.client.Subscribe(s.Topics.Command(s.ID), s.onCommand); err != nil {
		return err
	}
	go s.worker(ctx)
	s.heartbeat()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.heartbeat()
		}
	}
}

func (s *SimulatedShelf) heartbeat() {
	if err := s.client.Publish(s.Topics.Heartbeat(s.ID), "alive"); err != nil {
		log.Printf("shelf %d: heartbeat: %v", s.ID, err)
	}
}

func (s *SimulatedShelf) onCommand(_ string, payload []byte) {
	it, err := coremqtt.ParseCommand(string(payload))
	if err != nil {
		log.Printf("shelf %d: %v", s.ID, err)
		return
	}
	select {
	case s.cmdCh <- it:
	default:
		log.Printf("shelf %d: command queue full, dropping item %d", s.ID, it.ID)
	}
}

func (s *SimulatedShelf) worker(ctx context.Context) {
	for {
		select {
		case it := <-s.cmdCh:
			reply := s.Strategy.Reply(ctx)
			if reply == "" {
				continue
			}
			log.Printf("shelf %d: item %d x%d -> %s", s.ID, it.ID, it.Quantity, reply)
			if err := s.client.Publish(s.Topics.Response(s.ID), reply); err != nil {
				log.Printf("shelf %d: response: %v", s.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
