package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IMU       IMUConfig       `yaml:"imu"`
	Detector  DetectorConfig  `yaml:"detector"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Grid      GridConfig      `yaml:"grid"`
	GPS       GPSConfig       `yaml:"gps"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Output    OutputConfig    `yaml:"output"`
	Status    StatusConfig    `yaml:"status"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sim       SimConfig       `yaml:"sim"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	Log       LogConfig       `yaml:"log"`
}

type IMUConfig struct {
	I2CBus  string `yaml:"i2c_bus"`
	Address uint16 `yaml:"address"`
	// Mode is the BNO055 fusion mode: imuplus, ndof or amg.
	Mode         string        `yaml:"mode"`
	SamplePeriod time.Duration `yaml:"sample_period"`

	RequireCalibration bool          `yaml:"require_calibration"`
	CalibrationTimeout time.Duration `yaml:"calibration_timeout"`
	CalibrationPoll    time.Duration `yaml:"calibration_poll"`
}

type DetectorConfig struct {
	Window            int           `yaml:"window"`
	MotionSensitivity float64       `yaml:"motion_sensitivity"`
	LaunchSensitivity float64       `yaml:"launch_sensitivity"`
	MinIMUTime        time.Duration `yaml:"min_imu_time"`
	// LandedDwell is how long the vehicle must stay still to count as landed.
	LandedDwell time.Duration `yaml:"landed_dwell"`
	Magnitude   string        `yaml:"magnitude"`
	// LaunchTimeout aborts the wait for launch; 0 waits forever.
	LaunchTimeout time.Duration `yaml:"launch_timeout"`
}

type EstimatorConfig struct {
	Smooth bool `yaml:"smooth"`
	// NoiseFloor zeroes smaller acceleration components. Negative disables.
	NoiseFloor float64 `yaml:"noise_floor"`
	NorthAxis  int     `yaml:"north_axis"`
	EastAxis   int     `yaml:"east_axis"`
}

type GridConfig struct {
	MapLenFt  float64 `yaml:"map_len_ft"`
	CellLenFt float64 `yaml:"cell_len_ft"`
	// Center defaults to the middle cell when unset.
	Center *int `yaml:"center"`

	// Reference coordinates are strings so they keep every written digit.
	RefLat      string  `yaml:"ref_lat"`
	RefLon      string  `yaml:"ref_lon"`
	LatFtPerDeg float64 `yaml:"lat_ft_per_deg"`
	LonFtPerDeg float64 `yaml:"lon_ft_per_deg"`
}

type GPSConfig struct {
	Enable     bool          `yaml:"enable"`
	Source     string        `yaml:"source"`
	GPSDAddr   string        `yaml:"gpsd_addr"`
	Device     string        `yaml:"device"`
	Baud       int           `yaml:"baud"`
	StaleAfter time.Duration `yaml:"stale_after"`
	FixTimeout time.Duration `yaml:"fix_timeout"`
	Poll       time.Duration `yaml:"poll"`
	// CrossCheck also maps the landing fix and logs any disagreement.
	CrossCheck bool `yaml:"cross_check"`
}

type TelemetryConfig struct {
	Dest string `yaml:"dest"`
	// Retry is the pause between link setup attempts; 0 retries immediately.
	Retry     time.Duration `yaml:"retry"`
	QueueSize int           `yaml:"queue_size"`
	// SampleEvery sends an ACC/GYR line every N ticks in flight; 0 disables.
	SampleEvery int `yaml:"sample_every"`
	// KeyRepeat is the number of KEY lines sent after landing; 0 repeats until
	// shutdown.
	KeyRepeat   int           `yaml:"key_repeat"`
	KeyInterval time.Duration `yaml:"key_interval"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	// FlightLog is the flight log file name inside Dir; empty disables it.
	FlightLog string `yaml:"flight_log"`
	Archive   bool   `yaml:"archive"`
}

type StatusConfig struct {
	// LEDPin is the GPIO line lit once the result is written; 0 disables.
	LEDPin int `yaml:"led_pin"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type SimConfig struct {
	// Script is a flight script path; empty uses the built-in hop.
	Script string `yaml:"script"`
}

type ReceiverConfig struct {
	Listen       string        `yaml:"listen"`
	ValidCount   int           `yaml:"valid_count"`
	GridPath     string        `yaml:"grid_path"`
	BlackboxPath string        `yaml:"blackbox_path"`
	Poll         time.Duration `yaml:"poll"`
	LEDPin       int           `yaml:"led_pin"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// seed holds the defaults for keys where zero is a meaningful value. Files
// decode over it, so only keys actually written replace them.
func seed() Config {
	var cfg Config
	cfg.Detector.MotionSensitivity = 3
	cfg.Detector.LaunchSensitivity = 13
	cfg.Estimator.NoiseFloor = 0.01
	return cfg
}

// Default is the configuration of an empty file.
func Default() Config {
	cfg := seed()
	if err := cfg.finish(); err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	cfg := seed()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) finish() error {
	// IMU.
	if cfg.IMU.I2CBus == "" {
		cfg.IMU.I2CBus = "/dev/i2c-1"
	}
	if cfg.IMU.Address == 0 {
		cfg.IMU.Address = 0x28
	}
	cfg.IMU.Mode = strings.ToLower(strings.TrimSpace(cfg.IMU.Mode))
	if cfg.IMU.Mode == "" {
		cfg.IMU.Mode = "imuplus"
	}
	switch cfg.IMU.Mode {
	case "imuplus", "ndof", "amg":
	default:
		return fmt.Errorf("imu.mode must be one of imuplus, ndof, amg")
	}
	if cfg.IMU.SamplePeriod <= 0 {
		cfg.IMU.SamplePeriod = 10 * time.Millisecond
	}
	if cfg.IMU.CalibrationTimeout <= 0 {
		cfg.IMU.CalibrationTimeout = 60 * time.Second
	}
	if cfg.IMU.CalibrationPoll <= 0 {
		cfg.IMU.CalibrationPoll = 500 * time.Millisecond
	}

	// Detector.
	if cfg.Detector.Window <= 0 {
		cfg.Detector.Window = 50
	}
	if cfg.Detector.MotionSensitivity < 0 {
		return fmt.Errorf("detector.motion_sensitivity must be >= 0")
	}
	if cfg.Detector.LaunchSensitivity < 0 {
		return fmt.Errorf("detector.launch_sensitivity must be >= 0")
	}
	if cfg.Detector.MinIMUTime <= 0 {
		cfg.Detector.MinIMUTime = 500 * time.Millisecond
	}
	if cfg.Detector.LandedDwell <= 0 {
		cfg.Detector.LandedDwell = 10 * time.Second
	}
	if cfg.Detector.LandedDwell < cfg.IMU.SamplePeriod {
		return fmt.Errorf("detector.landed_dwell must be >= imu.sample_period")
	}
	cfg.Detector.Magnitude = strings.ToLower(strings.TrimSpace(cfg.Detector.Magnitude))
	if cfg.Detector.Magnitude == "" {
		cfg.Detector.Magnitude = "sum"
	}
	if cfg.Detector.Magnitude != "sum" && cfg.Detector.Magnitude != "norm" {
		return fmt.Errorf("detector.magnitude must be 'sum' or 'norm'")
	}
	if cfg.Detector.LaunchTimeout < 0 {
		return fmt.Errorf("detector.launch_timeout must be >= 0")
	}

	// Estimator.
	if cfg.Estimator.NoiseFloor < 0 {
		cfg.Estimator.NoiseFloor = 0
	}
	if cfg.Estimator.NorthAxis == 0 && cfg.Estimator.EastAxis == 0 {
		cfg.Estimator.EastAxis = 1
	}
	for _, a := range []struct {
		key string
		v   int
	}{{"estimator.north_axis", cfg.Estimator.NorthAxis}, {"estimator.east_axis", cfg.Estimator.EastAxis}} {
		if a.v < 0 || a.v > 2 {
			return fmt.Errorf("%s must be 0, 1 or 2", a.key)
		}
	}
	if cfg.Estimator.NorthAxis == cfg.Estimator.EastAxis {
		return fmt.Errorf("estimator.north_axis and estimator.east_axis must differ")
	}

	// Grid.
	if cfg.Grid.MapLenFt <= 0 {
		cfg.Grid.MapLenFt = 5000
	}
	if cfg.Grid.CellLenFt <= 0 {
		cfg.Grid.CellLenFt = 250
	}
	if cfg.Grid.CellLenFt > cfg.Grid.MapLenFt {
		return fmt.Errorf("grid.cell_len_ft must be <= grid.map_len_ft")
	}
	perRow := int(cfg.Grid.MapLenFt/cfg.Grid.CellLenFt) + 1
	if cfg.Grid.Center == nil {
		c := (perRow*perRow - 1) / 2
		cfg.Grid.Center = &c
	}
	if *cfg.Grid.Center < 0 || *cfg.Grid.Center >= perRow*perRow {
		return fmt.Errorf("grid.center must be in [0,%d]", perRow*perRow-1)
	}
	if cfg.Grid.RefLat == "" {
		cfg.Grid.RefLat = "38.663484"
	}
	if cfg.Grid.RefLon == "" {
		cfg.Grid.RefLon = "-90.365707"
	}
	if cfg.Grid.LatFtPerDeg <= 0 {
		cfg.Grid.LatFtPerDeg = 364000
	}
	if cfg.Grid.LonFtPerDeg <= 0 {
		cfg.Grid.LonFtPerDeg = 288200
	}

	// GPS.
	cfg.GPS.Source = strings.ToLower(strings.TrimSpace(cfg.GPS.Source))
	if cfg.GPS.Source == "" {
		cfg.GPS.Source = "nmea"
	}
	if cfg.GPS.Source != "nmea" && cfg.GPS.Source != "gpsd" {
		return fmt.Errorf("gps.source must be 'nmea' or 'gpsd'")
	}
	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 9600
	}
	if cfg.GPS.Baud < 0 {
		return fmt.Errorf("gps.baud must be > 0")
	}
	if cfg.GPS.FixTimeout <= 0 {
		cfg.GPS.FixTimeout = 30 * time.Second
	}
	if cfg.GPS.Poll <= 0 {
		cfg.GPS.Poll = time.Second
	}
	if cfg.GPS.StaleAfter < 0 {
		return fmt.Errorf("gps.stale_after must be >= 0")
	}

	// Telemetry.
	if cfg.Telemetry.Retry < 0 {
		return fmt.Errorf("telemetry.retry must be >= 0")
	}
	if cfg.Telemetry.QueueSize <= 0 {
		cfg.Telemetry.QueueSize = 256
	}
	if cfg.Telemetry.SampleEvery < 0 {
		return fmt.Errorf("telemetry.sample_every must be >= 0")
	}
	if cfg.Telemetry.KeyRepeat < 0 {
		return fmt.Errorf("telemetry.key_repeat must be >= 0")
	}
	if cfg.Telemetry.KeyInterval <= 0 {
		cfg.Telemetry.KeyInterval = time.Second
	}

	// Output.
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.Archive && cfg.Output.FlightLog == "" {
		return fmt.Errorf("output.archive requires output.flight_log")
	}

	if cfg.Status.LEDPin < 0 {
		return fmt.Errorf("status.led_pin must be >= 0")
	}

	// Receiver.
	if cfg.Receiver.Listen == "" {
		cfg.Receiver.Listen = ":5005"
	}
	if cfg.Receiver.ValidCount <= 0 {
		cfg.Receiver.ValidCount = 5
	}
	if cfg.Receiver.GridPath == "" {
		cfg.Receiver.GridPath = "grid_number.txt"
	}
	if cfg.Receiver.BlackboxPath == "" {
		cfg.Receiver.BlackboxPath = "blackbox.txt"
	}
	if cfg.Receiver.GridPath == cfg.Receiver.BlackboxPath {
		return fmt.Errorf("receiver.grid_path and receiver.blackbox_path must differ")
	}
	if cfg.Receiver.Poll <= 0 {
		cfg.Receiver.Poll = 500 * time.Millisecond
	}
	if cfg.Receiver.LEDPin == 0 {
		cfg.Receiver.LEDPin = 4
	}
	if cfg.Receiver.LEDPin < 0 {
		cfg.Receiver.LEDPin = 0
	}

	// Log.
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// ValidateFlight checks the settings only the flight computer needs.
func (cfg Config) ValidateFlight() error {
	if strings.TrimSpace(cfg.Telemetry.Dest) == "" {
		return fmt.Errorf("telemetry.dest is required")
	}
	return nil
}
