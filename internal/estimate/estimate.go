// Package estimate turns a captured flight buffer into a navigation-frame
// displacement trajectory.
//
// The pipeline is batch only: repair, filter, rotate, then integrate twice.
// Each stage finishes over the whole buffer before the next one starts.
package estimate

import (
	"context"
	"errors"
	"fmt"

	"payloadnav/internal/filter"
	"payloadnav/internal/frame"
	"payloadnav/internal/integrate"
	"payloadnav/internal/nav"
	"payloadnav/internal/repair"
)

var ErrNoSamples = errors.New("estimate: flight buffer is empty")

type Options struct {
	// Smooth applies 3-point neighbour smoothing to acceleration.
	Smooth bool
	// NoiseFloor zeroes acceleration components below it; 0 disables.
	NoiseFloor float64
}

type Result struct {
	NavAcc       []nav.Vec3
	Velocity     []nav.Vec3
	Displacement []nav.Vec3
	// Final is the last displacement, in meters.
	Final nav.Vec3
	// OffUnit counts quaternions outside frame.UnitTolerance.
	OffUnit int
	// Duration is the elapsed time covered by the buffer, in seconds.
	Duration float64
}

// Run estimates displacement for buf. buf is consumed read-only; the result
// shares no memory with it.
func Run(ctx context.Context, buf nav.Buffer, opts Options) (Result, error) {
	if err := buf.Validate(); err != nil {
		return Result{}, fmt.Errorf("estimate: %w", err)
	}
	n := buf.Len()
	if n == 0 {
		return Result{}, ErrNoSamples
	}

	acc, err := repair.Vectors(buf.Acc)
	if err != nil {
		return Result{}, fmt.Errorf("estimate: repair acceleration: %w", err)
	}
	quats, err := repair.Quaternions(buf.Quat)
	if err != nil {
		return Result{}, fmt.Errorf("estimate: repair orientation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if opts.NoiseFloor > 0 {
		acc = filter.NoiseAll(acc, opts.NoiseFloor)
	}
	if opts.Smooth {
		acc = filter.Smooth(acc)
	}

	res := Result{NavAcc: make([]nav.Vec3, n)}
	for i := range acc {
		if !frame.NearUnit(quats[i]) {
			res.OffUnit++
		}
		res.NavAcc[i] = frame.Rotate(quats[i], acc[i])
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res.Velocity, err = integrate.CumulativeVec(res.NavAcc, buf.Time)
	if err != nil {
		return Result{}, fmt.Errorf("estimate: velocity: %w", err)
	}
	res.Displacement, err = integrate.CumulativeVec(res.Velocity, buf.Time)
	if err != nil {
		return Result{}, fmt.Errorf("estimate: displacement: %w", err)
	}
	res.Final = res.Displacement[n-1]
	res.Duration = buf.Time[n-1] - buf.Time[0]
	return res, nil
}
