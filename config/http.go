package config

import "fmt"

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// ImageDir receives uploaded product images, served under /images/.
	ImageDir string `json:"image_dir"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":5001"
	}
	if c.ImageDir == "" {
		c.ImageDir = "public/images"
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http: addr is required")
	}
	return nil
}
