package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"payloadnav/internal/capture"
	"payloadnav/internal/config"
	"payloadnav/internal/gps"
	"payloadnav/internal/i2c"
	"payloadnav/internal/metrics"
	"payloadnav/internal/sensors/bno055"
	"payloadnav/internal/sim"
	"payloadnav/internal/status"
	"payloadnav/internal/telemetry"
)

var (
	flySim    bool
	flyScript string
)

var flyCmd = &cobra.Command{
	Use:   "fly",
	Short: "Run the flight: wait for launch, record, locate the landing cell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flyScript != "" {
			cfg.Sim.Script = flyScript
			flySim = true
		}
		if err := cfg.ValidateFlight(); err != nil {
			return err
		}
		logger := newLogger(cfg.Log, os.Stderr)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runFly(ctx, cfg, flySim, logger)
	},
}

func init() {
	flyCmd.Flags().BoolVar(&flySim, "sim", false, "fly a simulated sensor instead of the BNO055")
	flyCmd.Flags().StringVar(&flyScript, "script", "", "simulated flight script (implies --sim)")
}

func runFly(ctx context.Context, cfg config.Config, simulate bool, logger *slog.Logger) error {
	mcfg, err := missionConfig(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	serveMetrics(ctx, cfg.Metrics.Listen, logger)
	go reportBoard(ctx, logger)

	var (
		imu capture.IMU
		pos capture.PositionSource
	)
	if simulate {
		imu, pos, err = openSim(cfg, mcfg, logger)
		if err != nil {
			return err
		}
	} else {
		dev, closeIMU, err := openIMU(cfg.IMU)
		if err != nil {
			return err
		}
		defer closeIMU()
		imu = dev

		if cfg.GPS.Enable {
			svc := gps.New(gpsConfig(cfg.GPS), logger)
			if err := svc.Start(ctx); err != nil {
				logger.Warn("gps start failed, continuing without launch coordinate", "err", err)
			} else {
				defer svc.Close()
				pos = svc
			}
		}
	}

	link, err := telemetry.Dial(ctx, cfg.Telemetry.Dest, cfg.Telemetry.Retry, logger)
	if err != nil {
		return err
	}
	defer link.Close()
	q := telemetry.NewQueue(link, cfg.Telemetry.QueueSize, logger)
	defer q.Close()

	led, err := status.Open(cfg.Status.LEDPin)
	if err != nil {
		logger.Warn("status led unavailable", "pin", cfg.Status.LEDPin, "err", err)
		led = status.Nop{}
	}
	defer led.Close()

	m, err := capture.NewMission(mcfg, imu, pos, q, led, logger)
	if err != nil {
		return err
	}
	logger.Info("payloadnav flying", "dest", link.Dest(), "period", mcfg.Period, "sim", simulate)
	rep, err := m.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("flight complete", "key", rep.Key, "samples", rep.Samples, "log", rep.FlightLog)
	return nil
}

func openIMU(c config.IMUConfig) (*bno055.Device, func(), error) {
	mode, err := bno055.ParseMode(c.Mode)
	if err != nil {
		return nil, nil, err
	}
	bus, err := i2c.Open(c.I2CBus)
	if err != nil {
		return nil, nil, err
	}
	dev, err := bno055.New(bus.Dev(c.Address), mode)
	if err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return dev, func() { _ = bus.Close() }, nil
}

func openSim(cfg config.Config, mcfg capture.Config, logger *slog.Logger) (*sim.Flight, *sim.GPS, error) {
	script := sim.DefaultScript()
	if cfg.Sim.Script != "" {
		var err error
		script, err = sim.LoadScript(cfg.Sim.Script)
		if err != nil {
			return nil, nil, err
		}
	}
	f, err := sim.NewFlight(script, time.Now())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("simulated flight", "script", cfg.Sim.Script, "duration", script.Duration())
	return f, sim.NewGPS(f, mcfg.Locator.Surveyor), nil
}

// reportBoard publishes the board temperature until ctx ends.
func reportBoard(ctx context.Context, logger *slog.Logger) {
	if model := status.BoardModel(); model != "" {
		logger.Info("board", "model", model)
	}
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		if c, err := status.BoardTempC(); err == nil {
			metrics.SetBoardTemp(c)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
