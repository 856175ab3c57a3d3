package sim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"payloadnav/internal/frame"
	"payloadnav/internal/nav"
	"payloadnav/internal/sensors/bno055"
)

const gravity = 9.80665

// Flight is a simulated BNO055 flying a Script in real time from start.
type Flight struct {
	script Script
	start  time.Time

	// Clock defaults to time.Now.
	Clock func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewFlight(script Script, start time.Time) (*Flight, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &Flight{
		script: script,
		start:  start,
		Clock:  time.Now,
		rng:    rand.New(rand.NewSource(script.Seed)),
	}, nil
}

func (f *Flight) Script() Script { return f.script }

func (f *Flight) Elapsed() time.Duration {
	d := f.Clock().Sub(f.start)
	if d < 0 {
		return 0
	}
	return d
}

// Done reports whether the script has run out.
func (f *Flight) Done() bool { return f.Elapsed() >= f.script.Duration() }

// navAcc is the scripted navigation-frame linear acceleration at t.
func (f *Flight) navAcc(t time.Duration) nav.Vec3 {
	k, _, _ := f.script.segment(t)
	return nav.Vec3{X: k.AccNorth, Y: k.AccEast, Z: k.AccUp}
}

func (f *Flight) heading(t time.Duration) float64 {
	k0, k1, a := f.script.segment(t)
	return lerpAngleDeg(k0.HeadingDeg, k1.HeadingDeg, a)
}

// attitude is a pure yaw by the heading at t.
func (f *Flight) attitude(t time.Duration) nav.Quat {
	half := f.heading(t) * math.Pi / 360
	return nav.QuatWXYZ(math.Cos(half), 0, 0, math.Sin(half))
}

func (f *Flight) toBody(t time.Duration, v nav.Vec3) nav.Vec3 {
	return frame.Rotate(frame.Inverse(f.attitude(t)), v)
}

// miss draws a dropout and, when the read succeeds, axis noise.
func (f *Flight) miss() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.script.Dropout > 0 && f.rng.Float64() < f.script.Dropout
}

func (f *Flight) noise() nav.Vec3 {
	if f.script.Noise == 0 {
		return nav.Vec3{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.script.Noise
	return nav.Vec3{X: f.rng.NormFloat64() * n, Y: f.rng.NormFloat64() * n, Z: f.rng.NormFloat64() * n}
}

func (f *Flight) LinearAcceleration() (nav.Vec3, bool) {
	if f.miss() {
		return nav.Vec3{}, false
	}
	t := f.Elapsed()
	return f.toBody(t, f.navAcc(t)).Add(f.noise()), true
}

func (f *Flight) Acceleration() (nav.Vec3, bool) {
	if f.miss() {
		return nav.Vec3{}, false
	}
	t := f.Elapsed()
	a := f.navAcc(t).Add(nav.Vec3{Z: gravity})
	return f.toBody(t, a).Add(f.noise()), true
}

// AngularRate is the yaw rate implied by the heading keyframes, in rad/s.
func (f *Flight) AngularRate() (nav.Vec3, bool) {
	if f.miss() {
		return nav.Vec3{}, false
	}
	t := f.Elapsed()
	k0, k1, _ := f.script.segment(t)
	rate := 0.0
	if dt := k1.T - k0.T; dt > 0 {
		rate = deltaDeg(k0.HeadingDeg, k1.HeadingDeg) * math.Pi / 180 / dt.Seconds()
	}
	return nav.Vec3{Z: rate}, true
}

// MagneticField is a fixed mid-latitude field seen through the attitude, in uT.
func (f *Flight) MagneticField() (nav.Vec3, bool) {
	if f.miss() {
		return nav.Vec3{}, false
	}
	t := f.Elapsed()
	return f.toBody(t, nav.Vec3{X: 21, Y: -1, Z: -47}), true
}

func (f *Flight) Orientation() (nav.Quat, bool) {
	if f.miss() {
		return nav.Quat{}, false
	}
	return f.attitude(f.Elapsed()), true
}

func (f *Flight) Calibration() (bno055.Calibration, bool) {
	if f.Elapsed() >= f.script.CalibrateAfter {
		return bno055.Calibration{System: 3, Gyro: 3, Accel: 3, Mag: 3}, true
	}
	return bno055.Calibration{Gyro: 1, Accel: 1}, true
}

// Truth is the exact navigation-frame displacement at t, in meters, from
// integrating the piecewise-constant acceleration.
func (f *Flight) Truth(t time.Duration) nav.Vec3 {
	var pos, vel nav.Vec3
	kfs := f.script.Keyframes
	for i, k := range kfs {
		if k.T >= t {
			break
		}
		end := t
		if i+1 < len(kfs) && kfs[i+1].T < t {
			end = kfs[i+1].T
		}
		dt := (end - k.T).Seconds()
		a := nav.Vec3{X: k.AccNorth, Y: k.AccEast, Z: k.AccUp}
		pos = pos.Add(vel.Scale(dt)).Add(a.Scale(0.5 * dt * dt))
		vel = vel.Add(a.Scale(dt))
	}
	return pos
}
