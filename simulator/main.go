package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := RandomReply{Delay: cfg.DispenseLatency, FailRate: cfg.FailRate, DropRate: cfg.DropRate}
	runShelves(ctx, cfg, strat)
}

func parseFlags(args []string) (Config, error) {
	var cfg Config
	var shelves string
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	fs.StringVar(&cfg.TopicPrefix, "topic-prefix", coremqtt.DefaultPrefix, "MQTT topic prefix")
	fs.StringVar(&shelves, "shelves", "1,2,3,4,5", "comma separated shelf ids")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", 5*time.Second, "heartbeat period")
	fs.DurationVar(&cfg.DispenseLatency, "latency", 500*time.Millisecond, "time to dispense one item")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0, "probability of a failed dispense")
	fs.Float64Var(&cfg.DropRate, "drop-rate", 0, "probability of never answering")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	ids, err := parseShelves(shelves)
	if err != nil {
		return cfg, err
	}
	cfg.Shelves = ids
	return cfg, nil
}

func runShelves(ctx context.Context, cfg Config, strat ReplyStrategy) {
	topics := coremqtt.Topics{Prefix: cfg.TopicPrefix}
	var wg sync.WaitGroup
	for _, id := range cfg.Shelves {
		cli, err := newMQTTClient(cfg.Broker, fmt.Sprintf("sim-shelf-%d-%d", id, time.Now().UnixNano()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "shelf %d: connect: %v\n", id, err)
			continue
		}
		s := NewSimulatedShelf(id, topics, strat, cfg.HeartbeatInterval, cli)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cli.Close()
			if err := s.Run(ctx); err != nil {
				log.Printf("shelf %d: %v", s.ID, err)
			}
		}()
	}
	wg.Wait()
}
