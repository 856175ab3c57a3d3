// Package capture runs one flight: it waits for the sensor and a launch fix,
// samples the IMU through launch and landing, then estimates and reports the
// landing grid cell.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"payloadnav/internal/estimate"
	"payloadnav/internal/flightlog"
	"payloadnav/internal/gridmap"
	"payloadnav/internal/metrics"
	"payloadnav/internal/nav"
	"payloadnav/internal/phase"
	"payloadnav/internal/sensors/bno055"
	"payloadnav/internal/status"
	"payloadnav/internal/telemetry"
)

var (
	ErrLaunchTimeout    = errors.New("capture: no launch before timeout")
	ErrCoordUnavailable = errors.New("capture: launch coordinate unavailable")
	ErrNotCalibrated    = errors.New("capture: sensor not calibrated before timeout")
)

// IMU is the orientation sensor. A false result is a read miss.
type IMU interface {
	Acceleration() (nav.Vec3, bool)
	LinearAcceleration() (nav.Vec3, bool)
	AngularRate() (nav.Vec3, bool)
	MagneticField() (nav.Vec3, bool)
	Orientation() (nav.Quat, bool)
	Calibration() (bno055.Calibration, bool)
}

type PositionSource interface {
	HasFix() bool
	PollOnce()
	Current() gridmap.GeoCoord
}

// newTicker is replaced in tests to drive the loop with synthetic ticks.
var newTicker = func(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Config struct {
	Period    time.Duration
	Detector  phase.Config
	Estimator estimate.Options
	// NorthAxis and EastAxis pick the navigation axes that map to the grid.
	NorthAxis int
	EastAxis  int
	Locator   gridmap.Locator

	RequireCalibration bool
	CalibrationTimeout time.Duration
	CalibrationPoll    time.Duration

	FixTimeout time.Duration
	FixPoll    time.Duration
	// CrossCheck maps the landing GPS fix too and logs any disagreement.
	CrossCheck bool

	// LaunchTimeout is 0 to wait for launch forever.
	LaunchTimeout time.Duration

	SampleEvery int
	KeyRepeat   int
	KeyInterval time.Duration

	OutputDir string
	FlightLog string
	Archive   bool
}

// Report is what a completed flight produced.
type Report struct {
	Launch    *gridmap.GeoCoord
	Samples   int
	// Skipped counts in-flight ticks left out of the estimate for a missed read.
	Skipped   int
	Estimate  estimate.Result
	Fix       gridmap.Fix
	GPSFix    *gridmap.Fix
	FlightLog string
	Key       string
}

type Mission struct {
	cfg    Config
	imu    IMU
	gps    PositionSource
	tx     telemetry.Sink
	led    status.LED
	logger *slog.Logger

	now func() time.Time
}

// NewMission wires a flight. gps and led may be nil.
func NewMission(cfg Config, imu IMU, gps PositionSource, tx telemetry.Sink, led status.LED, logger *slog.Logger) (*Mission, error) {
	if imu == nil {
		return nil, fmt.Errorf("capture: imu is nil")
	}
	if tx == nil {
		return nil, fmt.Errorf("capture: telemetry sink is nil")
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("capture: period must be > 0")
	}
	if err := cfg.Locator.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.KeyInterval <= 0 {
		cfg.KeyInterval = time.Second
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if led == nil {
		led = status.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mission{
		cfg:    cfg,
		imu:    imu,
		gps:    gps,
		tx:     tx,
		led:    led,
		logger: logger.With("component", "capture"),
		now:    time.Now,
	}, nil
}

// Run flies the mission to completion. After landing it keeps sending the key
// until KeyRepeat is reached or ctx ends; a ctx cancel at that point is a
// normal finish.
func (m *Mission) Run(ctx context.Context) (Report, error) {
	m.send(telemetry.SetupDone)

	if err := m.waitCalibration(ctx); err != nil {
		return Report{}, err
	}

	var rep Report
	launch, err := m.acquireFix(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Report{}, ctx.Err()
		}
		m.logger.Warn("launch coordinate unavailable, map centre assumed", "err", err)
	} else {
		rep.Launch = &launch
	}
	m.send(telemetry.LaunchCoord(rep.Launch))

	buf, skipped, lw, err := m.fly(ctx)
	if err != nil {
		return Report{}, err
	}
	rep.Samples = buf.Len()
	rep.Skipped = skipped
	if lw != nil {
		path, err := m.finishFlightLog(lw)
		if err != nil {
			m.logger.Error("flight log failed", "err", err)
		}
		rep.FlightLog = path
	}

	key, runErr := m.locate(ctx, buf, &rep)
	rep.Key = key
	if err := m.led.Set(true); err != nil {
		m.logger.Warn("status led failed", "err", err)
	}
	m.repeatKey(ctx, key)
	return rep, runErr
}

func (m *Mission) send(line string) {
	if err := telemetry.SendLine(m.tx, line); err != nil {
		m.logger.Debug("telemetry send failed", "line", line, "err", err)
	}
}

func (m *Mission) waitCalibration(ctx context.Context) error {
	deadline := m.now().Add(m.cfg.CalibrationTimeout)
	var last bno055.Calibration
	for {
		if c, ok := m.imu.Calibration(); ok {
			last = c
			if c.Ready() {
				m.logger.Info("sensor calibrated", "calibration", c.String())
				return nil
			}
		}
		if !m.now().Before(deadline) {
			if m.cfg.RequireCalibration {
				return fmt.Errorf("%w (%s)", ErrNotCalibrated, last)
			}
			m.logger.Warn("calibration incomplete, continuing", "calibration", last.String())
			return nil
		}
		if err := wait(ctx, m.cfg.CalibrationPoll); err != nil {
			return err
		}
	}
}

func (m *Mission) acquireFix(ctx context.Context) (gridmap.GeoCoord, error) {
	if m.gps == nil {
		return gridmap.GeoCoord{}, ErrCoordUnavailable
	}
	deadline := m.now().Add(m.cfg.FixTimeout)
	for {
		m.gps.PollOnce()
		if m.gps.HasFix() {
			c := m.gps.Current()
			m.logger.Info("launch coordinate", "coord", c.String())
			return c, nil
		}
		if !m.now().Before(deadline) {
			return gridmap.GeoCoord{}, ErrCoordUnavailable
		}
		if err := wait(ctx, m.cfg.FixPoll); err != nil {
			return gridmap.GeoCoord{}, err
		}
	}
}

// fly samples until landing. Every tick from launch to landing is streamed to
// the flight log when one is configured; the returned buffer holds only the
// ticks where acceleration, angular rate and orientation were all read, with
// time measured from launch.
func (m *Mission) fly(ctx context.Context) (buf nav.Buffer, skipped int, lw *flightlog.Writer, err error) {
	det := phase.NewDetector(m.cfg.Detector)
	metrics.SetPhase(int(det.State()))
	m.send(telemetry.WaitLaunch)

	ticks, stop := newTicker(m.cfg.Period)
	defer stop()

	defer func() {
		if err != nil && lw != nil {
			_ = lw.Close()
			lw = nil
		}
	}()

	var n int
	flushRows := int(time.Second / m.cfg.Period)
	if flushRows < 1 {
		flushRows = 1
	}
	start := m.now()
	for {
		var tk time.Time
		select {
		case <-ctx.Done():
			return nav.Buffer{}, 0, lw, ctx.Err()
		case tk = <-ticks:
		}
		elapsed := tk.Sub(start)

		var accp *nav.Vec3
		acc, ok := m.imu.LinearAcceleration()
		metrics.SensorRead("linear_acceleration", ok)
		if ok {
			accp = &acc
		}

		ev := det.Observe(elapsed, accp)
		switch ev {
		case phase.EventLaunch:
			lw = m.openFlightLog(tk)
			m.logger.Info("launch detected", "elapsed", elapsed, "mean", det.Mean())
			m.send(telemetry.EventLaunch)
			m.send(telemetry.WaitLanding)
			metrics.SetPhase(int(det.State()))
		case phase.EventNone:
			if det.State() == phase.Idle {
				if m.cfg.LaunchTimeout > 0 && elapsed >= m.cfg.LaunchTimeout {
					return nav.Buffer{}, 0, nil, ErrLaunchTimeout
				}
				continue
			}
		}

		s := nav.Sample{Elapsed: elapsed - det.LaunchedAt(), Acc: accp}
		if g, ok := m.imu.AngularRate(); ok {
			s.Gyro = &g
		}
		if q, ok := m.imu.Orientation(); ok {
			s.Quat = &q
		}
		metrics.SensorRead("angular_rate", s.Gyro != nil)
		metrics.SensorRead("orientation", s.Quat != nil)

		if lw != nil {
			if werr := m.logTick(lw, s, flushRows); werr != nil {
				m.logger.Error("flight log append failed, logging stopped", "err", werr)
				_ = lw.Close()
				lw = nil
			}
		}
		if s.Complete() {
			buf.Append(s.Elapsed, s.Acc, s.Quat)
			metrics.SetBuffered(buf.Len())
		} else {
			skipped++
		}

		n++
		if m.cfg.SampleEvery > 0 && s.Acc != nil && s.Gyro != nil && n%m.cfg.SampleEvery == 0 {
			m.send(telemetry.Sample(*s.Acc, *s.Gyro))
		}

		if ev == phase.EventLanding {
			metrics.SetPhase(int(det.State()))
			m.logger.Info("landing detected", "flight", elapsed-det.LaunchedAt(), "samples", buf.Len(), "skipped", skipped)
			m.send(telemetry.EventLanding)
			return buf, skipped, lw, nil
		}
	}
}

// logTick appends s and flushes about once a second of flight.
func (m *Mission) logTick(lw *flightlog.Writer, s nav.Sample, flushRows int) error {
	if err := lw.Append(s); err != nil {
		return err
	}
	if lw.Rows()%flushRows == 0 {
		return lw.Flush()
	}
	return nil
}

// openFlightLog starts the log at launch. A nil writer means logging is off or
// the file could not be created; the flight goes on either way.
func (m *Mission) openFlightLog(launch time.Time) *flightlog.Writer {
	if m.cfg.FlightLog == "" {
		return nil
	}
	path := filepath.Join(m.cfg.OutputDir, m.cfg.FlightLog)
	lw, err := flightlog.Create(path, flightlog.Header{Start: launch, RateHz: 1 / m.cfg.Period.Seconds()})
	if err != nil {
		m.logger.Error("flight log create failed", "path", path, "err", err)
		return nil
	}
	return lw
}

func (m *Mission) finishFlightLog(lw *flightlog.Writer) (string, error) {
	path := lw.Path()
	if err := lw.Close(); err != nil {
		return path, err
	}
	if m.cfg.Archive {
		return flightlog.Archive(path)
	}
	return path, nil
}

// locate estimates the landing cell and writes the result files. It returns
// the key line to broadcast.
func (m *Mission) locate(ctx context.Context, buf nav.Buffer, rep *Report) (string, error) {
	fail := func(err error) (string, error) {
		m.logger.Error("position estimate failed", "err", err)
		if werr := flightlog.WriteFailure(m.cfg.OutputDir, err); werr != nil {
			m.logger.Error("result write failed", "err", werr)
		}
		metrics.SetGridCell(-1)
		return telemetry.KeyError, err
	}

	began := time.Now()
	res, err := estimate.Run(ctx, buf, m.cfg.Estimator)
	metrics.ObserveEstimate(time.Since(began).Seconds(), res.OffUnit)
	if err != nil {
		return fail(err)
	}
	rep.Estimate = res

	finalFt := res.Final.Scale(nav.MetersToFeet)
	imu := gridmap.Planar{North: finalFt.Axis(m.cfg.NorthAxis), East: finalFt.Axis(m.cfg.EastAxis)}
	fix, err := m.cfg.Locator.Locate(imu, rep.Launch)
	if err != nil {
		return fail(err)
	}
	rep.Fix = fix
	m.logger.Info("landing located", "cell", fix.Cell, "north_ft", fix.Position.North, "east_ft", fix.Position.East,
		"source", fix.Source, "off_unit", res.OffUnit)

	if m.cfg.CrossCheck && m.gps != nil && rep.Launch != nil {
		m.gps.PollOnce()
		if m.gps.HasFix() {
			g, err := m.cfg.Locator.LocateGPS(*rep.Launch, m.gps.Current())
			if err == nil {
				rep.GPSFix = &g
				diff := gridmap.Planar{North: g.Position.North - fix.Position.North, East: g.Position.East - fix.Position.East}
				m.logger.Info("gps cross-check", "gps_cell", g.Cell, "imu_cell", fix.Cell, "diff_ft", diff.Norm())
			}
		}
	}

	if err := flightlog.WriteResult(m.cfg.OutputDir, fix, finalFt); err != nil {
		m.logger.Error("result write failed", "err", err)
	}
	metrics.SetGridCell(fix.Cell)
	return telemetry.Key(fix.Cell), nil
}

func (m *Mission) repeatKey(ctx context.Context, key string) {
	for i := 0; m.cfg.KeyRepeat == 0 || i < m.cfg.KeyRepeat; i++ {
		if i > 0 {
			if err := wait(ctx, m.cfg.KeyInterval); err != nil {
				return
			}
		}
		m.send(key)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
