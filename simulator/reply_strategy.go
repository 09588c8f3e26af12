package main

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

// Reply payloads published by the simulated shelves.
const (
	replySuccess = coremqtt.ResponseSuccess
	replyFail    = "fail"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func roll() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

// ReplyStrategy decides what a shelf answers to a dispense command. An
// empty reply means the shelf stays silent.
type ReplyStrategy interface {
	Reply(ctx context.Context) string
}

// AutoReply always succeeds after an optional fixed delay.
type AutoReply struct {
	Delay time.Duration
}

// Reply implements ReplyStrategy.
func (a AutoReply) Reply(ctx context.Context) string {
	if !sleep(ctx, a.Delay) {
		return ""
	}
	return replySuccess
}

// RandomReply drops replies with DropRate and reports a failed dispense with
// FailRate, after the configured delay.
type RandomReply struct {
	Delay    time.Duration
	FailRate float64
	DropRate float64
}

// Reply implements ReplyStrategy.
func (r RandomReply) Reply(ctx context.Context) string {
	if r.DropRate > 0 && roll() < r.DropRate {
		log.Printf("dropping reply")
		return ""
	}
	if !sleep(ctx, r.Delay) {
		return ""
	}
	if r.FailRate > 0 && roll() < r.FailRate {
		return replyFail
	}
	return replySuccess
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
