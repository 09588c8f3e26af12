package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var shelvesWait time.Duration

var shelvesCmd = &cobra.Command{
	Use:   "shelves",
	Short: "Listen for shelf heartbeats and print their health",
	RunE:  runShelves,
}

func init() {
	shelvesCmd.Flags().DurationVar(&shelvesWait, "wait", 6*time.Second, "listening window")
	rootCmd.AddCommand(shelvesCmd)
}

func runShelves(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), shelvesWait)
	defer cancel()
	eng, cleanup, err := startEngine(ctx, cmd, "shelves-command")
	if err != nil {
		return err
	}
	defer cleanup()
	<-ctx.Done()

	for _, s := range eng.Shelves() {
		last := "never"
		if !s.LastHeartbeat.IsZero() {
			last = s.LastHeartbeat.Format(time.RFC3339)
		}
		state := "offline"
		if s.Online {
			state = "online"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "shelf %d\t%s\tlast heartbeat %s\n", s.Shelf, state, last)
	}
	return nil
}
