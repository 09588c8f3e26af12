package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vending/core/model"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

type published struct{ topic, payload string }

type fakeBroker struct {
	mu   sync.Mutex
	pubs []published
	subs map[string]func(string, []byte)
}

func newFakeBroker() *fakeBroker { return &fakeBroker{subs: map[string]func(string, []byte){}} }

func (f *fakeBroker) Publish(topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, published{topic, payload})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, h func(string, []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = h
	return nil
}

func (f *fakeBroker) Close() {}

func (f *fakeBroker) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.subs[topic]
	f.mu.Unlock()
	if h != nil {
		h(topic, []byte(payload))
	}
}

func (f *fakeBroker) on(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.pubs {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

func (f *fakeBroker) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[topic] != nil
}

func TestShelfHeartbeatsAndReplies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newFakeBroker()
	topics := coremqtt.Topics{}
	s := NewSimulatedShelf(3, topics, AutoReply{}, 20*time.Millisecond, b)
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return b.subscribed(topics.Command(3)) }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(b.on(topics.Heartbeat(3))) >= 2 }, time.Second, 5*time.Millisecond)

	b.deliver(topics.Command(3), "12,2")
	b.deliver(topics.Command(3), "garbage")
	require.Eventually(t, func() bool { return len(b.on(topics.Response(3))) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{replySuccess}, b.on(topics.Response(3)))
}

func TestRandomReply(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RandomReply{DropRate: 1}.Reply(ctx))
	assert.Equal(t, replyFail, RandomReply{FailRate: 1}.Reply(ctx))
	assert.Equal(t, replySuccess, RandomReply{}.Reply(ctx))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, "", AutoReply{Delay: time.Second}.Reply(canceled))
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-shelves", "2, 4,2", "-fail-rate", "0.5"})
	require.NoError(t, err)
	assert.Equal(t, []model.ShelfID{2, 4}, cfg.Shelves)
	assert.Equal(t, 0.5, cfg.FailRate)
	assert.Equal(t, coremqtt.DefaultPrefix, cfg.TopicPrefix)
	require.NoError(t, cfg.Validate())

	cfg.FailRate = 2
	assert.Error(t, cfg.Validate())

	_, err = parseFlags([]string{"-shelves", "1,x"})
	assert.Error(t, err)
}
