package logging

import "fmt"

// Config selects and locates the dispense log backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// MaxSizeMB enables rotation of the jsonl file once it exceeds this size.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies the jsonl backend in the working directory.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "none" {
		c.Path = "dispense.log"
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("dispense_log: path is required")
		}
		if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
			return fmt.Errorf("dispense_log: rotation limits must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("dispense_log: unknown backend %s", c.Backend)
	}
}

// NewStore opens the configured store. It returns nil for the "none" backend.
func NewStore(c Config) (LogStore, error) {
	switch c.Backend {
	case "none":
		return nil, nil
	case "sqlite":
		return NewSQLiteStore(c.Path)
	case "jsonl":
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	default:
		return nil, fmt.Errorf("dispense_log: unknown backend %s", c.Backend)
	}
}
