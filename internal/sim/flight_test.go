package sim

import (
	"math"
	"testing"
	"time"

	"payloadnav/internal/frame"
	"payloadnav/internal/gridmap"
	"payloadnav/internal/nav"
)

func newTestFlight(t *testing.T, s Script) (*Flight, *time.Duration) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f, err := NewFlight(s, start)
	if err != nil {
		t.Fatalf("NewFlight: %v", err)
	}
	at := new(time.Duration)
	f.Clock = func() time.Time { return start.Add(*at) }
	return f, at
}

func near(a, b nav.Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestFlight_Truth(t *testing.T) {
	f, _ := newTestFlight(t, DefaultScript())
	if got := f.Truth(2 * time.Second); got != (nav.Vec3{}) {
		t.Fatalf("pad=%+v", got)
	}
	if got := f.Truth(3 * time.Second); got != (nav.Vec3{X: 10, Y: 5, Z: 15}) {
		t.Fatalf("burnout=%+v", got)
	}
	want := nav.Vec3{X: 60, Y: 30, Z: 90}
	if got := f.Truth(8 * time.Second); got != want {
		t.Fatalf("rest=%+v want %+v", got, want)
	}
	if got := f.Truth(30 * time.Second); got != want {
		t.Fatalf("after end=%+v want %+v", got, want)
	}
}

func TestFlight_BodyAccelerationRotatesBack(t *testing.T) {
	s := DefaultScript()
	for i := range s.Keyframes {
		s.Keyframes[i].HeadingDeg = 90
	}
	f, at := newTestFlight(t, s)
	*at = 2500 * time.Millisecond

	lin, ok := f.LinearAcceleration()
	if !ok {
		t.Fatalf("read missed")
	}
	q, _ := f.Orientation()
	if near(lin, nav.Vec3{X: 20, Y: 10, Z: 30}, 1e-9) {
		t.Fatalf("body acc should differ from nav acc under yaw: %+v", lin)
	}
	got := frame.Rotate(q, lin)
	if !near(got, nav.Vec3{X: 20, Y: 10, Z: 30}, 1e-9) {
		t.Fatalf("nav acc=%+v", got)
	}

	acc, _ := f.Acceleration()
	if g := frame.Rotate(q, acc); math.Abs(g.Z-30-gravity) > 1e-9 {
		t.Fatalf("total acc=%+v", g)
	}
}

func TestFlight_YawRate(t *testing.T) {
	s := Script{Keyframes: []Keyframe{{T: 0, HeadingDeg: 350}, {T: 2 * time.Second, HeadingDeg: 10}}}
	f, at := newTestFlight(t, s)
	*at = time.Second
	w, _ := f.AngularRate()
	want := 10 * math.Pi / 180
	if math.Abs(w.Z-want) > 1e-12 {
		t.Fatalf("yaw rate=%v want %v", w.Z, want)
	}
}

func TestFlight_Calibration(t *testing.T) {
	s := DefaultScript()
	s.CalibrateAfter = time.Second
	f, at := newTestFlight(t, s)
	if c, _ := f.Calibration(); c.Ready() {
		t.Fatalf("ready too early: %v", c)
	}
	*at = time.Second
	if c, _ := f.Calibration(); !c.Ready() {
		t.Fatalf("not ready: %v", c)
	}
}

func TestFlight_DropoutIsSeeded(t *testing.T) {
	s := DefaultScript()
	s.Dropout = 0.3
	run := func() []bool {
		f, _ := newTestFlight(t, s)
		out := make([]bool, 200)
		for i := range out {
			_, out[i] = f.LinearAcceleration()
		}
		return out
	}
	a, b := run(), run()
	misses := 0
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("read %d differs between runs", i)
		}
		if !a[i] {
			misses++
		}
	}
	if misses == 0 || misses > 120 {
		t.Fatalf("misses=%d of 200 at p=0.3", misses)
	}
}

func TestGPS_FollowsTruth(t *testing.T) {
	s := DefaultScript()
	s.FixAfter = time.Second
	f, at := newTestFlight(t, s)
	g := NewGPS(f, gridmap.DefaultSurveyor())
	if g.HasFix() {
		t.Fatalf("fix before FixAfter")
	}
	*at = time.Second
	if !g.HasFix() {
		t.Fatalf("no fix after FixAfter")
	}
	launch := g.Current()

	*at = 20 * time.Second
	d := gridmap.DefaultSurveyor().Distance(launch, g.Current())
	want := f.Truth(20 * time.Second).Scale(nav.MetersToFeet)
	if math.Abs(d.North-want.X) > 0.5 || math.Abs(d.East-want.Y) > 0.5 {
		t.Fatalf("gps displacement=%+v want ~%+v", d, want)
	}
}
