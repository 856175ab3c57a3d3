// Package phase detects launch and landing from a stream of acceleration
// readings.
//
// The detector runs online, one reading at a time, and walks
// Idle -> Launched -> Landed exactly once. Landed is terminal.
package phase

import (
	"fmt"
	"math"
	"time"

	"payloadnav/internal/nav"
)

type State int

const (
	Idle State = iota
	Launched
	Landed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Launched:
		return "launched"
	case Landed:
		return "landed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Event int

const (
	EventNone Event = iota
	EventLaunch
	EventLanding
)

// Magnitude selects the scalar fed into the rolling window.
type Magnitude int

const (
	// MagnitudeSum adds the three axes. Thresholds are tuned against it.
	MagnitudeSum Magnitude = iota
	// MagnitudeNorm uses the Euclidean norm.
	MagnitudeNorm
)

func ParseMagnitude(s string) (Magnitude, error) {
	switch s {
	case "", "sum":
		return MagnitudeSum, nil
	case "norm":
		return MagnitudeNorm, nil
	default:
		return 0, fmt.Errorf("phase: unknown magnitude %q (want sum or norm)", s)
	}
}

type Config struct {
	// Window is the number of most recent readings averaged.
	Window int
	// MotionSensitivity is the mean below which the vehicle counts as still.
	MotionSensitivity float64
	// LaunchSensitivity is the extra margin above MotionSensitivity needed for launch.
	LaunchSensitivity float64
	// MinIMUTime is how long after launch landing detection stays disabled.
	MinIMUTime time.Duration
	// LandedCount is the number of consecutive still readings that mean landed.
	LandedCount int
	Magnitude   Magnitude
}

// DefaultConfig matches a 100 Hz sample rate and a 10 s landing dwell.
func DefaultConfig() Config {
	return Config{
		Window:            50,
		MotionSensitivity: 3,
		LaunchSensitivity: 13,
		MinIMUTime:        500 * time.Millisecond,
		LandedCount:       LandedCountFor(10*time.Second, 10*time.Millisecond),
		Magnitude:         MagnitudeSum,
	}
}

// LandedCountFor converts a real-time dwell into a tick count.
func LandedCountFor(dwell, period time.Duration) int {
	if period <= 0 {
		return 0
	}
	return int(dwell / period)
}

type Detector struct {
	cfg Config

	state      State
	window     []float64
	next       int
	filled     int
	launchedAt time.Duration
	motionless int
}

func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.LandedCount <= 0 {
		cfg.LandedCount = def.LandedCount
	}
	return &Detector{cfg: cfg, window: make([]float64, cfg.Window)}
}

func (d *Detector) State() State { return d.state }

// LaunchedAt is the elapsed time of the reading that triggered launch.
func (d *Detector) LaunchedAt() time.Duration { return d.launchedAt }

func (d *Detector) Motionless() int { return d.motionless }

// Mean is the mean absolute value over the readings currently in the window,
// or 0 when the window is empty.
func (d *Detector) Mean() float64 {
	if d.filled == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < d.filled; i++ {
		sum += math.Abs(d.window[i])
	}
	return sum / float64(d.filled)
}

// Observe feeds one reading taken at elapsed (time since the process started).
// A nil reading is a sensor miss and leaves every counter untouched.
func (d *Detector) Observe(elapsed time.Duration, acc *nav.Vec3) Event {
	if acc == nil || d.state == Landed {
		return EventNone
	}
	d.push(d.magnitude(*acc))

	switch d.state {
	case Idle:
		if d.Mean() > d.cfg.MotionSensitivity+d.cfg.LaunchSensitivity {
			d.state = Launched
			d.launchedAt = elapsed
			d.reset()
			return EventLaunch
		}
	case Launched:
		if elapsed-d.launchedAt >= d.cfg.MinIMUTime && d.Mean() < d.cfg.MotionSensitivity {
			d.motionless++
		} else {
			d.motionless = 0
		}
		if d.motionless >= d.cfg.LandedCount {
			d.state = Landed
			return EventLanding
		}
	}
	return EventNone
}

func (d *Detector) magnitude(v nav.Vec3) float64 {
	if d.cfg.Magnitude == MagnitudeNorm {
		return v.Norm()
	}
	return v.Sum()
}

func (d *Detector) push(v float64) {
	d.window[d.next] = v
	d.next = (d.next + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}
}

// reset drops pre-launch readings so landing is judged on flight data only.
func (d *Detector) reset() {
	d.next = 0
	d.filled = 0
	d.motionless = 0
}
