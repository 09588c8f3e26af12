package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/vending/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with defaults applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return writeConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

const masked = "********"

// writeConfig renders cfg as YAML under its json keys. Secrets are masked.
func writeConfig(w io.Writer, cfg *config.Config) error {
	c := *cfg
	if c.MQTT.Password != "" {
		c.MQTT.Password = masked
	}
	if c.Store.DefaultPassword != "" {
		c.Store.DefaultPassword = masked
	}
	if c.Sentry.DSN != "" {
		c.Sentry.DSN = masked
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
