package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/infra/logger"
)

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispense events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDispense writes one item outcome.
func (s *InfluxSink) RecordDispense(ev coremetrics.DispenseEvent) error {
	p := write.NewPointWithMeasurement("dispense_item").
		AddTag("shelf", strconv.Itoa(int(ev.Shelf))).
		AddTag("status", string(ev.Status)).
		AddTag("order_id", ev.OrderID).
		AddField("item_id", ev.ItemID).
		AddField("quantity", ev.Quantity).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordOrder writes an order summary.
func (s *InfluxSink) RecordOrder(ev coremetrics.OrderEvent) error {
	p := write.NewPointWithMeasurement("order_completed").
		AddTag("order_id", ev.OrderID).
		AddField("items", ev.Items).
		AddField("dispensed", ev.Dispensed).
		AddField("failed", ev.Failed).
		AddField("disconnected", ev.Disconnected).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordShelfHealth writes a liveness transition.
func (s *InfluxSink) RecordShelfHealth(ev coremetrics.ShelfHealthEvent) error {
	p := write.NewPointWithMeasurement("shelf_health").
		AddTag("shelf", strconv.Itoa(int(ev.Shelf))).
		AddField("online", ev.Online).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordStatus writes a broadcast status event.
func (s *InfluxSink) RecordStatus(ev model.StatusEvent) error {
	p := write.NewPointWithMeasurement("status_event").
		AddTag("type", string(ev.Kind)).
		AddTag("component", "broadcaster")
	if ev.Status != "" {
		p = p.AddTag("status", string(ev.Status))
	}
	p = p.AddField("item_id", ev.ItemID).
		AddField("order_id", ev.OrderID).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
