package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/core/vending"
	"github.com/kilianp07/vending/infra/logger"
	"github.com/kilianp07/vending/infra/mqtt"
)

var orderWait time.Duration

var orderCmd = &cobra.Command{
	Use:   "order <id[:qty]>...",
	Short: "Dispense items directly through the shelf controllers",
	Long: "Connects to the broker, waits for shelf heartbeats and runs one order " +
		"without touching the product store.",
	Args: cobra.MinimumNArgs(1),
	RunE: runOrder,
}

func init() {
	orderCmd.Flags().DurationVar(&orderWait, "wait", 6*time.Second, "time to wait for shelf heartbeats")
	rootCmd.AddCommand(orderCmd)
}

// parseItems turns "30:2 7" into item refs. The quantity defaults to 1.
func parseItems(args []string) ([]model.ItemRef, error) {
	items := make([]model.ItemRef, 0, len(args))
	for _, a := range args {
		idStr, qtyStr, hasQty := strings.Cut(a, ":")
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id in %q", a)
		}
		qty := 1
		if hasQty {
			if qty, err = strconv.Atoi(qtyStr); err != nil || qty <= 0 {
				return nil, fmt.Errorf("invalid quantity in %q", a)
			}
		}
		items = append(items, model.ItemRef{ID: id, Quantity: qty})
	}
	return items, nil
}

// startEngine connects a transport and runs a standalone engine until ctx ends.
func startEngine(ctx context.Context, cmd *cobra.Command, component string) (*vending.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	mcfg := cfg.MQTT
	mcfg.ClientID = ""
	client, err := mqtt.NewPahoClient(mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mqtt client: %w", err)
	}
	logg := logger.New(component)
	eng, err := vending.NewEngine(cfg.Vending, client, vending.WithLogger(logg))
	if err != nil {
		client.Disconnect()
		return nil, nil, err
	}
	client.Listen(eng)
	go func() {
		if err := eng.Run(ctx); err != nil {
			logg.Errorf("engine: %v", err)
		}
	}()
	cleanup := func() {
		_ = eng.Close()
		client.Disconnect()
	}
	return eng, cleanup, nil
}

func runOrder(cmd *cobra.Command, args []string) error {
	items, err := parseItems(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := startEngine(ctx, cmd, "order-command")
	if err != nil {
		return err
	}
	defer cleanup()

	waitCtx, cancel := context.WithTimeout(ctx, orderWait)
	for !eng.IsLinkHealthy() && waitCtx.Err() == nil {
		select {
		case <-waitCtx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}
	cancel()
	if !eng.IsLinkHealthy() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: no shelf heartbeat received, items will be reported Disconnected")
	}

	res, err := eng.SubmitOrder(ctx, items)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "order %s\n", res.OrderID)
	for _, it := range res.Items {
		fmt.Fprintf(out, "  item %d x%d shelf %d: %s\n", it.ItemID, it.Quantity, it.Shelf, it.Status)
	}
	if !res.AllDispensed() {
		return fmt.Errorf("%d of %d items not dispensed", len(res.Items)-res.Count(model.StatusDispensed), len(res.Items))
	}
	return nil
}
