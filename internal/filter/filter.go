package filter

import (
	"math"

	"payloadnav/internal/nav"
)

// Noise zeroes every component whose magnitude is below threshold.
func Noise(v nav.Vec3, threshold float64) nav.Vec3 {
	return nav.Vec3{
		X: floor(v.X, threshold),
		Y: floor(v.Y, threshold),
		Z: floor(v.Z, threshold),
	}
}

// NoiseAll applies Noise to each element, returning a new slice.
func NoiseAll(seq []nav.Vec3, threshold float64) []nav.Vec3 {
	out := make([]nav.Vec3, len(seq))
	for i, v := range seq {
		out[i] = Noise(v, threshold)
	}
	return out
}

func floor(c, threshold float64) float64 {
	if math.Abs(c) < threshold {
		return 0
	}
	return c
}

// Smooth replaces each interior sample by the mean of its two neighbours in
// the original sequence. The first and last samples pass through.
func Smooth(seq []nav.Vec3) []nav.Vec3 {
	out := make([]nav.Vec3, len(seq))
	copy(out, seq)
	for i := 1; i < len(seq)-1; i++ {
		out[i] = seq[i-1].Add(seq[i+1]).Scale(0.5)
	}
	return out
}
