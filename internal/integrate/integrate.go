// Package integrate performs cumulative trapezoidal integration over sampled
// time series.
package integrate

import (
	"errors"

	"payloadnav/internal/nav"
)

var (
	ErrNonMonotonicTime = errors.New("integrate: timestamps must be strictly increasing")
	ErrLengthMismatch   = errors.New("integrate: samples and timestamps differ in length")
)

// Cumulative returns Y with Y[0]=0 and
// Y[i] = Y[i-1] + (y[i]+y[i-1])/2 * (t[i]-t[i-1]).
func Cumulative(y, t []float64) ([]float64, error) {
	if err := checkTime(len(y), t); err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	for i := 1; i < len(y); i++ {
		out[i] = out[i-1] + (y[i]+y[i-1])/2*(t[i]-t[i-1])
	}
	return out, nil
}

// CumulativeVec integrates each axis of y independently.
func CumulativeVec(y []nav.Vec3, t []float64) ([]nav.Vec3, error) {
	if err := checkTime(len(y), t); err != nil {
		return nil, err
	}
	out := make([]nav.Vec3, len(y))
	for i := 1; i < len(y); i++ {
		dt := t[i] - t[i-1]
		out[i] = out[i-1].Add(y[i].Add(y[i-1]).Scale(dt / 2))
	}
	return out, nil
}

func checkTime(n int, t []float64) error {
	if n != len(t) {
		return ErrLengthMismatch
	}
	for i := 1; i < len(t); i++ {
		if !(t[i] > t[i-1]) {
			return ErrNonMonotonicTime
		}
	}
	return nil
}
