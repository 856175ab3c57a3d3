package integrate

import (
	"errors"
	"math"
	"testing"

	"payloadnav/internal/nav"
)

func uniform(n int, dt float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * dt
	}
	return t
}

func TestCumulative_Constant(t *testing.T) {
	const c, dt = 9.81, 0.01
	n := 500
	y := make([]float64, n)
	for i := range y {
		y[i] = c
	}
	got, err := Cumulative(y, uniform(n, dt))
	if err != nil {
		t.Fatalf("Cumulative: %v", err)
	}
	for i, v := range got {
		want := c * float64(i) * dt
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("Y[%d]=%v want %v", i, v, want)
		}
	}
}

func TestCumulative_Linear(t *testing.T) {
	// y = t integrates exactly to t²/2 under the trapezoid rule.
	tt := []float64{0, 0.5, 1.5, 2}
	got, err := Cumulative(tt, tt)
	if err != nil {
		t.Fatalf("Cumulative: %v", err)
	}
	for i, v := range got {
		if want := tt[i] * tt[i] / 2; math.Abs(v-want) > 1e-12 {
			t.Fatalf("Y[%d]=%v want %v", i, v, want)
		}
	}
}

func TestCumulative_RejectsBadTime(t *testing.T) {
	cases := []struct {
		name string
		t    []float64
	}{
		{"Duplicate", []float64{0, 0.01, 0.01}},
		{"Backwards", []float64{0, 0.02, 0.01}},
		{"NaN", []float64{0, math.NaN(), 0.02}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Cumulative([]float64{1, 1, 1}, tc.t)
			if !errors.Is(err, ErrNonMonotonicTime) {
				t.Fatalf("err=%v want ErrNonMonotonicTime", err)
			}
		})
	}
}

func TestCumulative_LengthMismatch(t *testing.T) {
	_, err := Cumulative([]float64{1, 2}, []float64{0})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err=%v want ErrLengthMismatch", err)
	}
}

func TestCumulativeVec_ZeroAccelerationGivesZeroDisplacement(t *testing.T) {
	for _, n := range []int{1, 2, 17, 1000} {
		acc := make([]nav.Vec3, n)
		tt := uniform(n, 0.01)
		vel, err := CumulativeVec(acc, tt)
		if err != nil {
			t.Fatalf("CumulativeVec: %v", err)
		}
		pos, err := CumulativeVec(vel, tt)
		if err != nil {
			t.Fatalf("CumulativeVec: %v", err)
		}
		for i, p := range pos {
			if p != (nav.Vec3{}) {
				t.Fatalf("n=%d pos[%d]=%v want zero", n, i, p)
			}
		}
	}
}

func TestCumulativeVec_ConstantPerAxis(t *testing.T) {
	n := 101
	acc := make([]nav.Vec3, n)
	for i := range acc {
		acc[i] = nav.Vec3{X: 1, Y: -2, Z: 0.5}
	}
	tt := uniform(n, 0.01)
	vel, err := CumulativeVec(acc, tt)
	if err != nil {
		t.Fatalf("CumulativeVec: %v", err)
	}
	last := vel[n-1]
	if math.Abs(last.X-1) > 1e-9 || math.Abs(last.Y+2) > 1e-9 || math.Abs(last.Z-0.5) > 1e-9 {
		t.Fatalf("v(1s)=%v want (1,-2,0.5)", last)
	}
}
