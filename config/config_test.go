package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/vending/core/model"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  topic_prefix: "machine"
  use_tls: false
vending:
  command_timeout_seconds: 3
  batch_order: "asc"
  shelves:
    - {shelf: 1, low: 1, high: 10}
    - {shelf: 2, low: 11, high: 20}
metrics:
  sinks:
    - type: "prometheus"
http:
  addr: ":8080"
store:
  path: "machine.db"
dispense_log:
  backend: "sqlite"
  path: "dispense.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"password", cfg.MQTT.Password, "pass"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "machine"},
		{"use_tls", cfg.MQTT.UseTLS, false},
		{"command_timeout_seconds", cfg.Vending.CommandTimeoutSeconds, 3},
		{"heartbeat default", cfg.Vending.HeartbeatTimeoutSeconds, 30},
		{"batch_order", cfg.Vending.BatchOrder, "asc"},
		{"shelves", len(cfg.Vending.Shelves), 2},
		{"second shelf", cfg.Vending.Shelves[1].Shelf, model.ShelfID(2)},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"http.addr", cfg.HTTP.Addr, ":8080"},
		{"http.image_dir", cfg.HTTP.ImageDir, "public/images"},
		{"store.path", cfg.Store.Path, "machine.db"},
		{"store.default_admin", cfg.Store.DefaultAdmin, "admin"},
		{"dispense_log.backend", cfg.DispenseLog.Backend, "sqlite"},
		{"sentry.environment", cfg.Sentry.Environment, "production"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"mqtt":{"broker":"tcp://a:1883"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_MQTT__BROKER", "tcp://b:1883")
	t.Setenv("K_HTTP__ADDR", ":9000")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("broker override not applied: %s", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("addr override not applied: %s", cfg.HTTP.Addr)
	}
	if len(cfg.Vending.Shelves) != 5 {
		t.Errorf("expected default routing table, got %d shelves", len(cfg.Vending.Shelves))
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "config.toml")); err == nil {
		t.Fatal("expected unsupported format error")
	}
	bad := filepath.Join(dir, "bad.yaml")
	data := "vending:\n  shelves:\n    - {shelf: 1, low: 1, high: 10}\n    - {shelf: 2, low: 5, high: 20}\n"
	if err := os.WriteFile(bad, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected overlapping shelves to be rejected")
	}
	badLog := filepath.Join(dir, "badlog.yaml")
	if err := os.WriteFile(badLog, []byte("dispense_log:\n  backend: \"csv\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(badLog); err == nil {
		t.Fatal("expected unknown log backend to be rejected")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.HTTP.Addr != ":5001" {
		t.Errorf("unexpected addr %s", cfg.HTTP.Addr)
	}
}
