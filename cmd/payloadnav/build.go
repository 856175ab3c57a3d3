package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"payloadnav/internal/capture"
	"payloadnav/internal/config"
	"payloadnav/internal/estimate"
	"payloadnav/internal/gps"
	"payloadnav/internal/gridmap"
	"payloadnav/internal/phase"
	"payloadnav/internal/telemetry"
)

func locatorFromConfig(c config.GridConfig) (gridmap.Locator, error) {
	ref, err := gridmap.ParseCoord(c.RefLat, c.RefLon)
	if err != nil {
		return gridmap.Locator{}, fmt.Errorf("grid reference: %w", err)
	}
	g := gridmap.Grid{MapLenFt: c.MapLenFt, CellLenFt: c.CellLenFt}
	g.PerRow = int(g.MapLenFt/g.CellLenFt) + 1
	if c.Center != nil {
		g.Center = *c.Center
	} else {
		g.Center = (g.Total() - 1) / 2
	}
	if err := g.Validate(); err != nil {
		return gridmap.Locator{}, err
	}
	return gridmap.Locator{
		Grid: g,
		Surveyor: gridmap.Surveyor{
			Reference:   ref,
			LatFtPerDeg: decimal.NewFromFloat(c.LatFtPerDeg),
			LonFtPerDeg: decimal.NewFromFloat(c.LonFtPerDeg),
		},
	}, nil
}

func detectorFromConfig(cfg config.Config) (phase.Config, error) {
	mag, err := phase.ParseMagnitude(cfg.Detector.Magnitude)
	if err != nil {
		return phase.Config{}, err
	}
	return phase.Config{
		Window:            cfg.Detector.Window,
		MotionSensitivity: cfg.Detector.MotionSensitivity,
		LaunchSensitivity: cfg.Detector.LaunchSensitivity,
		MinIMUTime:        cfg.Detector.MinIMUTime,
		LandedCount:       phase.LandedCountFor(cfg.Detector.LandedDwell, cfg.IMU.SamplePeriod),
		Magnitude:         mag,
	}, nil
}

func estimateOptions(c config.EstimatorConfig) estimate.Options {
	return estimate.Options{Smooth: c.Smooth, NoiseFloor: c.NoiseFloor}
}

func missionConfig(cfg config.Config) (capture.Config, error) {
	loc, err := locatorFromConfig(cfg.Grid)
	if err != nil {
		return capture.Config{}, err
	}
	det, err := detectorFromConfig(cfg)
	if err != nil {
		return capture.Config{}, err
	}
	return capture.Config{
		Period:    cfg.IMU.SamplePeriod,
		Detector:  det,
		Estimator: estimateOptions(cfg.Estimator),
		NorthAxis: cfg.Estimator.NorthAxis,
		EastAxis:  cfg.Estimator.EastAxis,
		Locator:   loc,

		RequireCalibration: cfg.IMU.RequireCalibration,
		CalibrationTimeout: cfg.IMU.CalibrationTimeout,
		CalibrationPoll:    cfg.IMU.CalibrationPoll,

		FixTimeout: cfg.GPS.FixTimeout,
		FixPoll:    cfg.GPS.Poll,
		CrossCheck: cfg.GPS.CrossCheck,

		LaunchTimeout: cfg.Detector.LaunchTimeout,

		SampleEvery: cfg.Telemetry.SampleEvery,
		KeyRepeat:   cfg.Telemetry.KeyRepeat,
		KeyInterval: cfg.Telemetry.KeyInterval,

		OutputDir: cfg.Output.Dir,
		FlightLog: cfg.Output.FlightLog,
		Archive:   cfg.Output.Archive,
	}, nil
}

func gpsConfig(c config.GPSConfig) gps.Config {
	return gps.Config{
		Enable:     c.Enable,
		Source:     c.Source,
		GPSDAddr:   c.GPSDAddr,
		Device:     c.Device,
		Baud:       c.Baud,
		StaleAfter: c.StaleAfter,
	}
}

func receiverConfig(c config.ReceiverConfig, dir string) telemetry.ReceiverConfig {
	return telemetry.ReceiverConfig{
		Listen:       c.Listen,
		ValidCount:   c.ValidCount,
		GridPath:     inDir(dir, c.GridPath),
		BlackboxPath: inDir(dir, c.BlackboxPath),
		Poll:         c.Poll,
	}
}

func inDir(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}

// parseLatLon accepts "lat,lon".
func parseLatLon(s string) (gridmap.GeoCoord, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return gridmap.GeoCoord{}, fmt.Errorf("coordinate %q: want lat,lon", s)
	}
	return gridmap.ParseCoord(lat, lon)
}
