package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is a deterministic flight profile for bench runs.
//
// YAML schema (v1):
//
//	version: 1
//	launch: {lat_deg: 38.663484, lon_deg: -90.365707}
//	calibrate_after: 2s
//	fix_after: 1s
//	dropout: 0.01
//	noise: 0.05
//	seed: 1
//	keyframes:
//	  - t: 0s
//	    acc_north: 0
//	    acc_east: 0
//	    acc_up: 0
//	    heading_deg: 0
//
// Acceleration is navigation-frame linear acceleration in m/s^2, held
// constant until the next keyframe. Heading is interpolated between
// keyframes along the shortest arc. Keyframes must be sorted by t.
type Script struct {
	Version int `yaml:"version"`

	Launch struct {
		LatDeg float64 `yaml:"lat_deg"`
		LonDeg float64 `yaml:"lon_deg"`
	} `yaml:"launch"`

	// CalibrateAfter is when the simulated sensor reports full calibration.
	CalibrateAfter time.Duration `yaml:"calibrate_after"`
	// FixAfter is when the simulated GPS first reports a fix. Negative means
	// never.
	FixAfter time.Duration `yaml:"fix_after"`

	// Dropout is the probability that any single read misses.
	Dropout float64 `yaml:"dropout"`
	// Noise is the standard deviation added to each acceleration axis.
	Noise float64 `yaml:"noise"`
	Seed  int64   `yaml:"seed"`

	Keyframes []Keyframe `yaml:"keyframes"`
}

type Keyframe struct {
	T          time.Duration `yaml:"t"`
	AccNorth   float64       `yaml:"acc_north"`
	AccEast    float64       `yaml:"acc_east"`
	AccUp      float64       `yaml:"acc_up"`
	HeadingDeg float64       `yaml:"heading_deg"`
}

// DefaultScript is a short hop: 2 s on the pad, a 1 s boost, a 5 s coast
// back to rest, then 15 s still on the ground.
func DefaultScript() Script {
	s := Script{
		Version:        1,
		CalibrateAfter: 500 * time.Millisecond,
		FixAfter:       200 * time.Millisecond,
		Seed:           1,
		Keyframes: []Keyframe{
			{T: 0},
			{T: 2 * time.Second, AccNorth: 20, AccEast: 10, AccUp: 30},
			{T: 3 * time.Second, AccNorth: -4, AccEast: -2, AccUp: -6},
			{T: 8 * time.Second},
			{T: 23 * time.Second},
		},
	}
	s.Launch.LatDeg = 38.663484
	s.Launch.LonDeg = -90.365707
	return s
}

func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("sim: %w", err)
	}
	return ParseScriptYAML(b)
}

func ParseScriptYAML(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, fmt.Errorf("sim: %w", err)
	}
	return s, s.Validate()
}

func (s *Script) Validate() error {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version != 1 {
		return fmt.Errorf("sim: unsupported script version %d", s.Version)
	}
	if len(s.Keyframes) == 0 {
		return fmt.Errorf("sim: keyframes is required")
	}
	for i, kf := range s.Keyframes {
		if kf.T < 0 {
			return fmt.Errorf("sim: keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < s.Keyframes[i-1].T {
			return fmt.Errorf("sim: keyframes must be sorted by t (index %d)", i)
		}
	}
	if s.Dropout < 0 || s.Dropout >= 1 {
		return fmt.Errorf("sim: dropout must be in [0,1)")
	}
	if s.Noise < 0 {
		return fmt.Errorf("sim: noise must be >= 0")
	}
	return nil
}

// Duration is the time of the last keyframe.
func (s *Script) Duration() time.Duration {
	return s.Keyframes[len(s.Keyframes)-1].T
}

// segment returns the keyframe in force at t and the next one, with the
// fraction of the way between them.
func (s *Script) segment(t time.Duration) (Keyframe, Keyframe, float64) {
	kfs := s.Keyframes
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0, k1 := kfs[idx-1], kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	return k0, k1, float64(t-k0.T) / float64(dt)
}

func normDeg(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}

// deltaDeg is the signed shortest turn from a0 to a1.
func deltaDeg(a0, a1 float64) float64 {
	d := normDeg(a1) - normDeg(a0)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	return normDeg(normDeg(a0) + deltaDeg(a0, a1)*t)
}
