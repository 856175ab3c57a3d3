package phase

import (
	"testing"
	"time"

	"payloadnav/internal/nav"
)

const tick = 10 * time.Millisecond

func axes(v float64) *nav.Vec3 { return &nav.Vec3{X: v, Y: v, Z: v} }

// run feeds readings at 100 Hz and records the index of each event.
func run(d *Detector, readings []*nav.Vec3) (launch, landing int) {
	launch, landing = -1, -1
	for i, r := range readings {
		switch d.Observe(time.Duration(i)*tick, r) {
		case EventLaunch:
			launch = i
		case EventLanding:
			landing = i
		}
	}
	return launch, landing
}

func TestDetector_Scenario(t *testing.T) {
	readings := []*nav.Vec3{axes(0), axes(0), axes(0), axes(0), axes(20), axes(20), axes(20)}
	for i := 0; i < 2000; i++ {
		readings = append(readings, axes(0))
	}

	d := NewDetector(DefaultConfig())
	launch, landing := run(d, readings)

	// Window means: 60/5=12, then 120/6=20 > 16.
	if launch != 5 {
		t.Fatalf("launch at %d want 5", launch)
	}
	if d.LaunchedAt() != 5*tick {
		t.Fatalf("launchedAt=%s want %s", d.LaunchedAt(), 5*tick)
	}
	// First still tick is the first one at least MinIMUTime after launch (index 55),
	// and landing needs 1000 of them.
	if landing != 55+999 {
		t.Fatalf("landing at %d want %d", landing, 55+999)
	}
	if d.State() != Landed {
		t.Fatalf("state=%s want landed", d.State())
	}
}

func TestDetector_NoLaunchOnEmptyHistory(t *testing.T) {
	d := NewDetector(Config{Window: 5, MotionSensitivity: -1, LaunchSensitivity: 0, LandedCount: 1})
	if d.Mean() != 0 {
		t.Fatalf("mean=%v want 0", d.Mean())
	}
	// Misses never count as accepted readings.
	for i := 0; i < 10; i++ {
		if ev := d.Observe(time.Duration(i)*tick, nil); ev != EventNone {
			t.Fatalf("event=%v on missing reading", ev)
		}
	}
	if d.State() != Idle {
		t.Fatalf("state=%s want idle", d.State())
	}
	if ev := d.Observe(0, axes(0)); ev != EventLaunch {
		t.Fatalf("event=%v want launch after first accepted reading", ev)
	}
}

func TestDetector_MissingReadingsDoNotResetMotionless(t *testing.T) {
	cfg := Config{Window: 1, MotionSensitivity: 3, LaunchSensitivity: 13, MinIMUTime: 0, LandedCount: 3}
	d := NewDetector(cfg)
	d.Observe(0, axes(10))
	if d.State() != Launched {
		t.Fatalf("state=%s want launched", d.State())
	}
	d.Observe(tick, axes(0))
	d.Observe(2*tick, nil)
	d.Observe(3*tick, axes(0))
	if d.Motionless() != 2 {
		t.Fatalf("motionless=%d want 2", d.Motionless())
	}
	if ev := d.Observe(4*tick, axes(0)); ev != EventLanding {
		t.Fatalf("event=%v want landing", ev)
	}
}

func TestDetector_NoLandingBeforeMinIMUTime(t *testing.T) {
	cfg := Config{Window: 1, MotionSensitivity: 3, LaunchSensitivity: 13, MinIMUTime: 500 * time.Millisecond, LandedCount: 1}
	d := NewDetector(cfg)
	d.Observe(0, axes(10))

	if ev := d.Observe(499*time.Millisecond, axes(0)); ev != EventNone {
		t.Fatalf("landed %v before MinIMUTime", ev)
	}
	if d.Motionless() != 0 {
		t.Fatalf("motionless=%d want 0 before MinIMUTime", d.Motionless())
	}
	if ev := d.Observe(500*time.Millisecond, axes(0)); ev != EventLanding {
		t.Fatalf("event=%v want landing at MinIMUTime", ev)
	}
}

func TestDetector_MotionResetsCounter(t *testing.T) {
	cfg := Config{Window: 1, MotionSensitivity: 3, LaunchSensitivity: 13, LandedCount: 3}
	d := NewDetector(cfg)
	d.Observe(0, axes(10))
	d.Observe(tick, axes(0))
	d.Observe(2*tick, axes(0))
	d.Observe(3*tick, axes(2))
	if d.Motionless() != 0 {
		t.Fatalf("motionless=%d want 0 after motion", d.Motionless())
	}
}

func TestDetector_LandedIsTerminal(t *testing.T) {
	cfg := Config{Window: 1, MotionSensitivity: 3, LaunchSensitivity: 13, LandedCount: 1}
	d := NewDetector(cfg)
	d.Observe(0, axes(10))
	if ev := d.Observe(tick, axes(0)); ev != EventLanding {
		t.Fatalf("event=%v want landing", ev)
	}
	for i := 2; i < 10; i++ {
		if ev := d.Observe(time.Duration(i)*tick, axes(100)); ev != EventNone {
			t.Fatalf("event=%v after landing", ev)
		}
	}
	if d.State() != Landed {
		t.Fatalf("state=%s want landed", d.State())
	}
}

func TestDetector_SumProxyVersusNorm(t *testing.T) {
	// Opposing axes cancel in the sum proxy but not in the norm.
	r := &nav.Vec3{X: 20, Y: -20}
	cfg := Config{Window: 1, MotionSensitivity: 3, LaunchSensitivity: 13, LandedCount: 1}

	sum := NewDetector(cfg)
	if ev := sum.Observe(0, r); ev != EventNone {
		t.Fatalf("sum proxy launched on cancelling axes")
	}

	cfg.Magnitude = MagnitudeNorm
	norm := NewDetector(cfg)
	if ev := norm.Observe(0, r); ev != EventLaunch {
		t.Fatalf("norm magnitude event=%v want launch", ev)
	}
}

func TestDetector_WindowIsBounded(t *testing.T) {
	d := NewDetector(Config{Window: 3, MotionSensitivity: 1000, LaunchSensitivity: 0, LandedCount: 1})
	for _, v := range []float64{30, 30, 30, 0, 0, 0} {
		d.Observe(0, &nav.Vec3{X: v})
	}
	if d.Mean() != 0 {
		t.Fatalf("mean=%v want 0 once old readings roll out", d.Mean())
	}
}

func TestLandedCountFor(t *testing.T) {
	if got := LandedCountFor(10*time.Second, 10*time.Millisecond); got != 1000 {
		t.Fatalf("got=%d want 1000", got)
	}
	if got := LandedCountFor(10*time.Second, 0); got != 0 {
		t.Fatalf("got=%d want 0", got)
	}
}

func TestParseMagnitude(t *testing.T) {
	if m, err := ParseMagnitude("norm"); err != nil || m != MagnitudeNorm {
		t.Fatalf("m=%v err=%v", m, err)
	}
	if _, err := ParseMagnitude("l2"); err == nil {
		t.Fatalf("expected error")
	}
}
