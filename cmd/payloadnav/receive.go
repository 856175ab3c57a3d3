package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"payloadnav/internal/config"
	"payloadnav/internal/status"
	"payloadnav/internal/telemetry"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Ground station: collect KEY lines and light the LED",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log, os.Stderr)
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runReceive(ctx, cfg, logger, cmd.OutOrStdout())
	},
}

func runReceive(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) error {
	serveMetrics(ctx, cfg.Metrics.Listen, logger)

	led, err := status.Open(cfg.Receiver.LEDPin)
	if err != nil {
		logger.Warn("receiver led unavailable", "pin", cfg.Receiver.LEDPin, "err", err)
		led = status.Nop{}
	}
	defer led.Close()

	r, err := telemetry.NewReceiver(receiverConfig(cfg.Receiver, cfg.Output.Dir), led, logger)
	if err != nil {
		return err
	}
	res, err := r.Run(ctx)
	if err != nil {
		return err
	}
	if res.Cell < 0 {
		fmt.Fprintf(out, "received %d keys, none valid\n", len(res.Keys))
		return nil
	}
	fmt.Fprintf(out, "received %d keys: cell %d (%d agree)\n", len(res.Keys), res.Cell, res.Agree)
	return nil
}
