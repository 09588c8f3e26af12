package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/vending/core/dispense/logging"
	"github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/vending"
	"github.com/kilianp07/vending/infra/mqtt"
	"github.com/kilianp07/vending/infra/store"
)

type Config struct {
	MQTT        mqtt.Config    `json:"mqtt"`
	Vending     vending.Config `json:"vending"`
	Metrics     metrics.Config `json:"metrics"`
	HTTP        HTTPConfig     `json:"http"`
	Store       store.Config   `json:"store"`
	DispenseLog logging.Config `json:"dispense_log"`
	Sentry      SentryConfig   `json:"sentry"`
}

// Load reads path (yaml or json) and applies K_ prefixed environment
// overrides, e.g. K_MQTT__BROKER for mqtt.broker.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every section defaulted.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Vending.SetDefaults()
	c.HTTP.SetDefaults()
	c.Store.SetDefaults()
	c.DispenseLog.SetDefaults()
	c.Sentry.SetDefaults()
}

func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"mqtt", c.MQTT.Validate},
		{"vending", c.Vending.Validate},
		{"http", c.HTTP.Validate},
		{"store", c.Store.Validate},
		{"dispense_log", c.DispenseLog.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
