package nav

import (
	"fmt"
	"math"
	"time"

	"github.com/westphae/quaternion"
)

// Vec3 is a 3-vector in either the body or the navigation frame.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sum is the cheap magnitude proxy used by the motion detector.
func (v Vec3) Sum() float64 {
	return v.X + v.Y + v.Z
}

// Axis returns component i (0=X, 1=Y, 2=Z).
func (v Vec3) Axis(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Quat is a scalar-first (W,X,Y,Z) quaternion rotating body vectors into the
// navigation frame.
type Quat = quaternion.Quaternion

// QuatWXYZ builds a Quat from sensor register order. Every raw quaternion
// enters the program through here.
func QuatWXYZ(w, x, y, z float64) Quat {
	return Quat{W: w, X: x, Y: y, Z: z}
}

// Sample is one tick of sensor data. A nil field is a read miss.
type Sample struct {
	Elapsed time.Duration

	Acc  *Vec3
	Gyro *Vec3
	Mag  *Vec3
	Quat *Quat
}

// Complete reports whether every field used for position estimation is present.
func (s Sample) Complete() bool {
	return s.Acc != nil && s.Gyro != nil && s.Quat != nil
}

// Axes3 and Axes4 hold per-axis optional components; nil is a missing axis.
type (
	Axes3 [3]*float64
	Axes4 [4]*float64
)

func AxesOf(v *Vec3) Axes3 {
	if v == nil {
		return Axes3{}
	}
	x, y, z := v.X, v.Y, v.Z
	return Axes3{&x, &y, &z}
}

func QuatAxesOf(q *Quat) Axes4 {
	if q == nil {
		return Axes4{}
	}
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Axes4{&w, &x, &y, &z}
}

// Buffer is the flight data captured between launch and landing.
// Acc, Quat and Time are positionally correlated.
type Buffer struct {
	Acc  []Axes3
	Quat []Axes4
	// Time is elapsed seconds since launch.
	Time []float64
}

func (b *Buffer) Append(elapsed time.Duration, acc *Vec3, q *Quat) {
	b.Acc = append(b.Acc, AxesOf(acc))
	b.Quat = append(b.Quat, QuatAxesOf(q))
	b.Time = append(b.Time, elapsed.Seconds())
}

func (b Buffer) Len() int { return len(b.Time) }

func (b Buffer) Validate() error {
	if len(b.Acc) != len(b.Time) || len(b.Quat) != len(b.Time) {
		return fmt.Errorf("nav: buffer length mismatch acc=%d quat=%d time=%d", len(b.Acc), len(b.Quat), len(b.Time))
	}
	return nil
}

// MetersToFeet converts estimator output to the map's unit.
const MetersToFeet = 3.280839895013123
